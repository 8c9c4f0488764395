package ido

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Amount is a non-negative integer quantity in a token's smallest unit.
type Amount = sdkmath.Int

// ZeroAmount returns a zero Amount.
func ZeroAmount() Amount {
	return sdkmath.ZeroInt()
}

// NewAmount builds an Amount from a uint64.
func NewAmount(v uint64) Amount {
	return sdkmath.NewIntFromUint64(v)
}

// ParseAmount parses a base-10 unsigned integer.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAmount(), fmt.Errorf("parse amount: empty string")
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return ZeroAmount(), fmt.Errorf("parse amount %q: not an integer", s)
	}
	if v.IsNegative() {
		return ZeroAmount(), fmt.Errorf("parse amount %q: negative", s)
	}
	return v, nil
}

// MustAmount is ParseAmount for literals. It panics on malformed input.
func MustAmount(s string) Amount {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// MulDiv returns floor(a*b/c) with an unbounded intermediate product.
// c must be positive.
func MulDiv(a, b, c Amount) Amount {
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return sdkmath.NewIntFromBigInt(num.Quo(num, c.BigInt()))
}

// orZero replaces an uninitialised Amount with zero.
func orZero(a Amount) Amount {
	if a.IsNil() {
		return ZeroAmount()
	}
	return a
}

// Scaled returns v * 10^decimals.
func Scaled(v uint64, decimals uint8) Amount {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return sdkmath.NewIntFromBigInt(scale.Mul(scale, new(big.Int).SetUint64(v)))
}
