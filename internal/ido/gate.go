package ido

import "fmt"

// Gate kinds as they appear in configuration, storage and the journal.
const (
	GateKindOpen    = "open"
	GateKindTicket  = "ticket"
	GateKindBalance = "balance"
)

// Gate decides how an account enters a project's roster.
// Implemented by OpenGate, TicketGate and BalanceGate.
type Gate interface {
	Kind() string
	gate()
}

// OpenGate admits every caller.
type OpenGate struct{}

// TicketGate admits every caller; lottery tickets are issued separately.
type TicketGate struct{}

// BalanceGate admits callers whose staking point is at least MinBalance.
// The point is fetched from the staking service through the resolver.
type BalanceGate struct {
	MinBalance Amount
}

func (OpenGate) Kind() string    { return GateKindOpen }
func (TicketGate) Kind() string  { return GateKindTicket }
func (BalanceGate) Kind() string { return GateKindBalance }

func (OpenGate) gate()    {}
func (TicketGate) gate()  {}
func (BalanceGate) gate() {}

// ValidateGate checks a gate definition.
func ValidateGate(g Gate) error {
	switch g := g.(type) {
	case OpenGate, TicketGate:
		return nil
	case BalanceGate:
		if g.MinBalance.IsNil() || g.MinBalance.IsNegative() {
			return NewInvalidArgument("gate.min_balance", "min balance must be a non-negative integer")
		}
		return nil
	case nil:
		return NewInvalidArgument("gate", "whitelist gate is required")
	default:
		return NewInvalidArgument("gate", fmt.Sprintf("unsupported gate %T", g))
	}
}

// GateConfig is the flat, serialisable form of a Gate.
type GateConfig struct {
	Kind       string `json:"kind" yaml:"kind"`
	MinBalance string `json:"min_balance,omitempty" yaml:"min_balance,omitempty"`
}

// Gate converts the config into its variant.
func (c GateConfig) Gate() (Gate, error) {
	switch c.Kind {
	case GateKindOpen, "":
		return OpenGate{}, nil
	case GateKindTicket:
		return TicketGate{}, nil
	case GateKindBalance:
		minBalance, err := ParseAmount(c.MinBalance)
		if err != nil {
			return nil, NewInvalidArgument("gate.min_balance", err.Error())
		}
		return BalanceGate{MinBalance: minBalance}, nil
	default:
		return nil, NewInvalidArgument("gate.kind", fmt.Sprintf("unknown gate kind %q", c.Kind))
	}
}

// GateConfigOf flattens a Gate.
func GateConfigOf(g Gate) GateConfig {
	switch g := g.(type) {
	case BalanceGate:
		return GateConfig{Kind: GateKindBalance, MinBalance: g.MinBalance.String()}
	case TicketGate:
		return GateConfig{Kind: GateKindTicket}
	default:
		return GateConfig{Kind: GateKindOpen}
	}
}
