// Package testutil holds fixtures shared by tests across packages.
package testutil

import (
	"time"

	"github.com/roach88/idocore/internal/ido"
)

// Base anchors every fixture timeline.
var Base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// Instants relative to Definition's windows: whitelist
// [Base+1h, Base+2h], sale [Base+3h, Base+4h].
var (
	BeforeWhitelist = Base
	InWhitelist     = Base.Add(90 * time.Minute)
	AfterWhitelist  = Base.Add(150 * time.Minute)
	InSale          = Base.Add(210 * time.Minute)
	AfterSale       = Base.Add(5 * time.Hour)
)

// Definition returns a project of 1000 tokens at one fund unit per ten
// tokens, on the fixture timeline.
func Definition(name string, gate ido.GateConfig, sale ido.SaleConfig) ido.Definition {
	return ido.Definition{
		Name:              name,
		WhitelistStart:    Base.Add(1 * time.Hour),
		WhitelistEnd:      Base.Add(2 * time.Hour),
		SaleStart:         Base.Add(3 * time.Hour),
		SaleEnd:           Base.Add(4 * time.Hour),
		TokenRaisedAmount: "1000",
		TokenSaleRate:     ido.Rate{Numerator: 1, Denominator: 10},
		Gate:              gate,
		Sale:              sale,
	}
}

// Open is an open-gate config.
func Open() ido.GateConfig {
	return ido.GateConfig{Kind: ido.GateKindOpen}
}

// Tickets is a ticket-gate config.
func Tickets() ido.GateConfig {
	return ido.GateConfig{Kind: ido.GateKindTicket}
}

// Balance is a balance-gate config.
func Balance(min string) ido.GateConfig {
	return ido.GateConfig{Kind: ido.GateKindBalance, MinBalance: min}
}

// Shared is a shared-pool config.
func Shared(min, max string) ido.SaleConfig {
	return ido.SaleConfig{Kind: ido.SaleKindShared, Min: min, Max: max}
}

// Lottery is a lottery config.
func Lottery(unitPrice string, total uint64) ido.SaleConfig {
	return ido.SaleConfig{Kind: ido.SaleKindLottery, UnitPrice: unitPrice, TotalTickets: total}
}
