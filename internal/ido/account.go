package ido

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SaleData is the model-specific part of a SaleRecord.
// Implemented by SharedData and *LotteryData.
type SaleData interface {
	Kind() string
	saleData()
}

// SharedData carries no state beyond the committed amount.
type SharedData struct{}

// LotteryData tracks an account's tickets.
// DepositedTickets == len(TicketIDs) <= EligibleTickets.
type LotteryData struct {
	EligibleTickets  uint64
	DepositedTickets uint64
	TicketIDs        []uint64
	WinningTicketIDs []uint64
}

func (SharedData) Kind() string   { return SaleKindShared }
func (*LotteryData) Kind() string { return SaleKindLottery }

func (SharedData) saleData()   {}
func (*LotteryData) saleData() {}

// SaleRecord is created when an account passes the whitelist gate.
type SaleRecord struct {
	Committed Amount
	Data      SaleData
}

// DistributionRecord is created when the project enters Distribution.
// Claimed never exceeds Unlocked and Refunded never exceeds Refundable.
type DistributionRecord struct {
	Unlocked   Amount
	Locked     Amount
	Claimed    Amount
	Refundable Amount
	Refunded   Amount
}

// ProjectAccount is one participant's state within one project, keyed by
// (ProjectID, Account).
type ProjectAccount struct {
	ProjectID    ProjectID
	Account      string
	Sale         *SaleRecord
	Distribution *DistributionRecord
}

// NewProjectAccount builds the account created on whitelist entry.
func NewProjectAccount(p *Project, account string) *ProjectAccount {
	var data SaleData = SharedData{}
	if _, ok := p.Sale.(Lottery); ok {
		data = &LotteryData{}
	}
	return &ProjectAccount{
		ProjectID: p.ID,
		Account:   account,
		Sale:      &SaleRecord{Committed: ZeroAmount(), Data: data},
	}
}

// Committed returns the account's committed amount, zero without a SaleRecord.
func (a *ProjectAccount) Committed() Amount {
	if a.Sale == nil {
		return ZeroAmount()
	}
	return orZero(a.Sale.Committed)
}

// Lottery returns the account's lottery data, if any.
func (a *ProjectAccount) Lottery() (*LotteryData, bool) {
	if a.Sale == nil {
		return nil, false
	}
	d, ok := a.Sale.Data.(*LotteryData)
	return d, ok
}

// Clone returns a deep copy of a.
func (a *ProjectAccount) Clone() *ProjectAccount {
	c := *a
	if a.Sale != nil {
		s := *a.Sale
		if d, ok := a.Sale.Data.(*LotteryData); ok {
			s.Data = d.Clone()
		}
		c.Sale = &s
	}
	if a.Distribution != nil {
		d := *a.Distribution
		c.Distribution = &d
	}
	return &c
}

// Clone returns a deep copy of d.
func (d *LotteryData) Clone() *LotteryData {
	c := *d
	c.TicketIDs = append([]uint64(nil), d.TicketIDs...)
	c.WinningTicketIDs = append([]uint64(nil), d.WinningTicketIDs...)
	return &c
}

// CheckInvariant verifies DepositedTickets == len(TicketIDs) <= EligibleTickets.
func (d *LotteryData) CheckInvariant() error {
	if d.DepositedTickets != uint64(len(d.TicketIDs)) {
		return fmt.Errorf("deposited tickets %d != ticket ids %d", d.DepositedTickets, len(d.TicketIDs))
	}
	if d.DepositedTickets > d.EligibleTickets {
		return fmt.Errorf("deposited tickets %d exceed eligible %d", d.DepositedTickets, d.EligibleTickets)
	}
	return nil
}

// Grant raises EligibleTickets by count. It fails rather than wrap.
func (d *LotteryData) Grant(count uint64) error {
	if count > math.MaxUint64-d.EligibleTickets {
		return NewInvalidArgument("count",
			fmt.Sprintf("granting %d tickets overflows eligibility %d", count, d.EligibleTickets))
	}
	d.EligibleTickets += count
	return d.CheckInvariant()
}

// NormalizeAccount canonicalises an account identity: NFC, trimmed, lower case.
func NormalizeAccount(account string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(norm.NFC.String(account)))
	if a == "" {
		return "", NewInvalidArgument("account", "account is required")
	}
	return a, nil
}
