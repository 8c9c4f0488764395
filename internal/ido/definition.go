package ido

import "time"

// Definition is the serialisable form of a new project, as accepted by
// the HTTP API, CUE project files and the operation journal.
type Definition struct {
	Name              string     `json:"name" yaml:"name"`
	WhitelistStart    time.Time  `json:"whitelist_start" yaml:"whitelist_start"`
	WhitelistEnd      time.Time  `json:"whitelist_end" yaml:"whitelist_end"`
	SaleStart         time.Time  `json:"sale_start" yaml:"sale_start"`
	SaleEnd           time.Time  `json:"sale_end" yaml:"sale_end"`
	TokenRaisedAmount string     `json:"token_raised_amount" yaml:"token_raised_amount"`
	TokenSaleRate     Rate       `json:"token_sale_rate" yaml:"token_sale_rate"`
	Gate              GateConfig `json:"gate" yaml:"gate"`
	Sale              SaleConfig `json:"sale" yaml:"sale"`
}

// Project converts d into an unvalidated Project.
func (d Definition) Project() (*Project, error) {
	raised, err := ParseAmount(d.TokenRaisedAmount)
	if err != nil {
		return nil, NewInvalidArgument("token_raised_amount", err.Error())
	}
	gate, err := d.Gate.Gate()
	if err != nil {
		return nil, err
	}
	sale, err := d.Sale.Model()
	if err != nil {
		return nil, err
	}
	return &Project{
		Name:              d.Name,
		WhitelistStart:    d.WhitelistStart,
		WhitelistEnd:      d.WhitelistEnd,
		SaleStart:         d.SaleStart,
		SaleEnd:           d.SaleEnd,
		TokenRaisedAmount: raised,
		TokenSaleRate:     d.TokenSaleRate,
		Gate:              gate,
		Sale:              sale,
	}, nil
}

// DefinitionOf flattens the definition fields of p.
func DefinitionOf(p *Project) Definition {
	return Definition{
		Name:              p.Name,
		WhitelistStart:    p.WhitelistStart.UTC(),
		WhitelistEnd:      p.WhitelistEnd.UTC(),
		SaleStart:         p.SaleStart.UTC(),
		SaleEnd:           p.SaleEnd.UTC(),
		TokenRaisedAmount: orZero(p.TokenRaisedAmount).String(),
		TokenSaleRate:     p.TokenSaleRate,
		Gate:              GateConfigOf(p.Gate),
		Sale:              SaleConfigOf(p.Sale),
	}
}
