package ido

import "fmt"

// Sale model kinds as they appear in configuration, storage and the journal.
const (
	SaleKindShared  = "shared"
	SaleKindLottery = "lottery"
)

// SaleModel is the allocation algorithm a project sells under.
// Implemented by SharedPool and Lottery.
type SaleModel interface {
	Kind() string
	saleModel()
}

// SharedPool bounds each account's cumulative contribution to [Min, Max].
// Tokens are distributed pro-rata to committed funds.
type SharedPool struct {
	Min Amount
	Max Amount
}

// Lottery sells tickets at UnitPrice each. At most TotalTickets tickets win.
type Lottery struct {
	UnitPrice    Amount
	TotalTickets uint64
}

func (SharedPool) Kind() string { return SaleKindShared }
func (Lottery) Kind() string    { return SaleKindLottery }

func (SharedPool) saleModel() {}
func (Lottery) saleModel()    {}

// ValidateSale checks a sale model definition.
func ValidateSale(m SaleModel) error {
	switch m := m.(type) {
	case SharedPool:
		if m.Min.IsNil() || m.Max.IsNil() {
			return NewInvalidArgument("sale", "shared pool needs min and max")
		}
		if m.Min.GT(m.Max) {
			return NewInvalidArgument("sale.min", fmt.Sprintf("min %s exceeds max %s", m.Min, m.Max))
		}
		if m.Max.IsZero() {
			return NewInvalidArgument("sale.max", "max must be positive")
		}
		return nil
	case Lottery:
		if m.UnitPrice.IsNil() || !m.UnitPrice.IsPositive() {
			return NewInvalidArgument("sale.unit_price", "unit price must be positive")
		}
		if m.TotalTickets == 0 {
			return NewInvalidArgument("sale.total_tickets", "total tickets must be positive")
		}
		return nil
	case nil:
		return NewInvalidArgument("sale", "sale model is required")
	default:
		return NewInvalidArgument("sale", fmt.Sprintf("unsupported sale model %T", m))
	}
}

// SaleConfig is the flat, serialisable form of a SaleModel.
type SaleConfig struct {
	Kind         string `json:"kind" yaml:"kind"`
	Min          string `json:"min,omitempty" yaml:"min,omitempty"`
	Max          string `json:"max,omitempty" yaml:"max,omitempty"`
	UnitPrice    string `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
	TotalTickets uint64 `json:"total_tickets,omitempty" yaml:"total_tickets,omitempty"`
}

// Model converts the config into its variant.
func (c SaleConfig) Model() (SaleModel, error) {
	switch c.Kind {
	case SaleKindShared:
		lo, err := ParseAmount(c.Min)
		if err != nil {
			return nil, NewInvalidArgument("sale.min", err.Error())
		}
		hi, err := ParseAmount(c.Max)
		if err != nil {
			return nil, NewInvalidArgument("sale.max", err.Error())
		}
		return SharedPool{Min: lo, Max: hi}, nil
	case SaleKindLottery:
		price, err := ParseAmount(c.UnitPrice)
		if err != nil {
			return nil, NewInvalidArgument("sale.unit_price", err.Error())
		}
		return Lottery{UnitPrice: price, TotalTickets: c.TotalTickets}, nil
	default:
		return nil, NewInvalidArgument("sale.kind", fmt.Sprintf("unknown sale kind %q", c.Kind))
	}
}

// SaleConfigOf flattens a SaleModel.
func SaleConfigOf(m SaleModel) SaleConfig {
	switch m := m.(type) {
	case SharedPool:
		return SaleConfig{Kind: SaleKindShared, Min: m.Min.String(), Max: m.Max.String()}
	case Lottery:
		return SaleConfig{Kind: SaleKindLottery, UnitPrice: m.UnitPrice.String(), TotalTickets: m.TotalTickets}
	default:
		return SaleConfig{}
	}
}
