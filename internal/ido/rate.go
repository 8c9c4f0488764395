package ido

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Rate is the token sale price expressed as fund units per token unit.
type Rate struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator"`
}

// NewRate returns a validated Rate.
func NewRate(numerator, denominator uint64) (Rate, error) {
	r := Rate{Numerator: numerator, Denominator: denominator}
	if err := r.Validate(); err != nil {
		return Rate{}, err
	}
	return r, nil
}

// Validate rejects zero numerators and denominators.
func (r Rate) Validate() error {
	if r.Numerator == 0 || r.Denominator == 0 {
		return NewInvalidArgument("token_sale_rate", fmt.Sprintf("rate %d/%d must have non-zero terms", r.Numerator, r.Denominator))
	}
	return nil
}

// Multiply converts a token amount into fund units.
func (r Rate) Multiply(amount Amount) Amount {
	return MulDiv(amount, NewAmount(r.Numerator), NewAmount(r.Denominator))
}

// DividedBy converts a fund amount into token units.
func (r Rate) DividedBy(amount Amount) Amount {
	return MulDiv(amount, NewAmount(r.Denominator), NewAmount(r.Numerator))
}

// Decimal returns the price as a decimal rounded to 18 places. Display only.
func (r Rate) Decimal() decimal.Decimal {
	num := decimal.NewFromBigInt(new(big.Int).SetUint64(r.Numerator), 0)
	den := decimal.NewFromBigInt(new(big.Int).SetUint64(r.Denominator), 0)
	return num.DivRound(den, 18)
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}
