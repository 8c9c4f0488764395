package ido

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProjectID identifies a project. IDs are assigned by the store.
type ProjectID int64

func (id ProjectID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseProjectID parses a decimal project id.
func ParseProjectID(s string) (ProjectID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, NewInvalidArgument("project_id", fmt.Sprintf("invalid project id %q", s))
	}
	return ProjectID(v), nil
}

// Project is the aggregate record of one offering.
type Project struct {
	ID   ProjectID
	Name string

	WhitelistStart time.Time
	WhitelistEnd   time.Time
	SaleStart      time.Time
	SaleEnd        time.Time

	// TokenRaisedAmount is the number of tokens on sale.
	TokenRaisedAmount Amount
	// TokenSaleRate is the fund price of one token unit.
	TokenSaleRate Rate
	// TotalFundCommitted always equals the sum of the accounts' committed amounts.
	TotalFundCommitted Amount

	Status Status
	Gate   Gate
	Sale   SaleModel

	// TicketCounter is the number of lottery tickets issued so far. The next
	// ticket id is TicketCounter.
	TicketCounter uint64

	// DistributionDust is the part of TokenRaisedAmount left over after
	// distribution truncated every account's share.
	DistributionDust Amount
}

// Validate checks a project definition before it is created.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewInvalidArgument("name", "project name is required")
	}
	if p.WhitelistStart.IsZero() || p.WhitelistEnd.IsZero() || p.SaleStart.IsZero() || p.SaleEnd.IsZero() {
		return NewInvalidArgument("dates", "all four phase boundaries are required")
	}
	if p.WhitelistEnd.Before(p.WhitelistStart) {
		return NewInvalidArgument("whitelist_end", "whitelist end precedes whitelist start")
	}
	if p.SaleStart.Before(p.WhitelistEnd) {
		return NewInvalidArgument("sale_start", "sale start precedes whitelist end")
	}
	if p.SaleEnd.Before(p.SaleStart) {
		return NewInvalidArgument("sale_end", "sale end precedes sale start")
	}
	if p.TokenRaisedAmount.IsNil() || !p.TokenRaisedAmount.IsPositive() {
		return NewInvalidArgument("token_raised_amount", "token raised amount must be positive")
	}
	if err := p.TokenSaleRate.Validate(); err != nil {
		return err
	}
	if err := ValidateGate(p.Gate); err != nil {
		return err
	}
	if err := ValidateSale(p.Sale); err != nil {
		return err
	}
	if lot, ok := p.Sale.(Lottery); ok {
		perTicket := p.TokenSaleRate.DividedBy(lot.UnitPrice)
		if perTicket.IsZero() {
			return NewInvalidArgument("sale.unit_price", "one ticket buys zero tokens at this rate")
		}
		if perTicket.Mul(NewAmount(lot.TotalTickets)).GT(p.TokenRaisedAmount) {
			return NewInvalidArgument("sale.total_tickets", "winning tickets would exceed the token raised amount")
		}
	}
	return nil
}

// Normalize prepares a validated definition for creation: status
// Preparation, zero aggregates.
func (p *Project) Normalize() {
	p.Status = StatusPreparation
	p.TotalFundCommitted = ZeroAmount()
	p.DistributionDust = ZeroAmount()
	p.TicketCounter = 0
	p.WhitelistStart = p.WhitelistStart.UTC()
	p.WhitelistEnd = p.WhitelistEnd.UTC()
	p.SaleStart = p.SaleStart.UTC()
	p.SaleEnd = p.SaleEnd.UTC()
}

// HardCap is the fund amount needed to buy every token on sale.
func (p *Project) HardCap() Amount {
	return p.TokenSaleRate.Multiply(p.TokenRaisedAmount)
}

// InWhitelistPeriod reports whitelistStart <= now <= whitelistEnd.
func (p *Project) InWhitelistPeriod(now time.Time) bool {
	return !now.Before(p.WhitelistStart) && !now.After(p.WhitelistEnd)
}

// InSalePeriod reports saleStart <= now <= saleEnd.
func (p *Project) InSalePeriod(now time.Time) bool {
	return !now.Before(p.SaleStart) && !now.After(p.SaleEnd)
}

// CheckWhitelistOpen validates that registrations are accepted at now.
func (p *Project) CheckWhitelistOpen(now time.Time) error {
	if p.Status != StatusWhitelist {
		return NewNotInPeriod(fmt.Sprintf("project is in %s, not Whitelist", p.Status))
	}
	if !p.InWhitelistPeriod(now) {
		return NewNotInPeriod("outside the whitelist window")
	}
	return nil
}

// CheckSaleOpen validates that commits are accepted at now.
func (p *Project) CheckSaleOpen(now time.Time) error {
	if p.Status != StatusSales {
		return NewNotInPeriod(fmt.Sprintf("project is in %s, not Sales", p.Status))
	}
	if !p.InSalePeriod(now) {
		return NewNotInPeriod("outside the sale window")
	}
	return nil
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	c := *p
	return &c
}
