package ido

import (
	"time"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// testProject returns a valid project whose windows are:
// whitelist [base+1h, base+2h], sale [base+3h, base+4h].
func testProject(sale SaleModel) *Project {
	p := &Project{
		ID:                7,
		Name:              "alpha",
		WhitelistStart:    base.Add(1 * time.Hour),
		WhitelistEnd:      base.Add(2 * time.Hour),
		SaleStart:         base.Add(3 * time.Hour),
		SaleEnd:           base.Add(4 * time.Hour),
		TokenRaisedAmount: NewAmount(1000),
		TokenSaleRate:     Rate{Numerator: 1, Denominator: 10},
		Gate:              OpenGate{},
		Sale:              sale,
	}
	p.Normalize()
	return p
}

func shared(lo, hi uint64) SharedPool {
	return SharedPool{Min: NewAmount(lo), Max: NewAmount(hi)}
}
