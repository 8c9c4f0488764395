package allocation

import (
	"context"
	"time"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

// Paging bounds for ListProjects.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ProjectView is the read projection of a project.
type ProjectView struct {
	ID                 ido.ProjectID  `json:"id"`
	Name               string         `json:"name"`
	Status             string         `json:"status"`
	WhitelistStart     time.Time      `json:"whitelist_start"`
	WhitelistEnd       time.Time      `json:"whitelist_end"`
	SaleStart          time.Time      `json:"sale_start"`
	SaleEnd            time.Time      `json:"sale_end"`
	TokenRaisedAmount  ido.Amount     `json:"token_raised_amount"`
	TokenSaleRate      ido.Rate       `json:"token_sale_rate"`
	Price              string         `json:"price"`
	HardCap            ido.Amount     `json:"hard_cap"`
	TotalFundCommitted ido.Amount     `json:"total_fund_committed"`
	Gate               ido.GateConfig `json:"gate"`
	Sale               ido.SaleConfig `json:"sale"`
	TicketCounter      uint64         `json:"ticket_counter"`
	RosterSize         int            `json:"roster_size"`
	DistributionDust   ido.Amount     `json:"distribution_dust"`
}

func newProjectView(p *ido.Project, rosterSize int) ProjectView {
	return ProjectView{
		ID:                 p.ID,
		Name:               p.Name,
		Status:             p.Status.String(),
		WhitelistStart:     p.WhitelistStart,
		WhitelistEnd:       p.WhitelistEnd,
		SaleStart:          p.SaleStart,
		SaleEnd:            p.SaleEnd,
		TokenRaisedAmount:  p.TokenRaisedAmount,
		TokenSaleRate:      p.TokenSaleRate,
		Price:              p.TokenSaleRate.Decimal().String(),
		HardCap:            p.HardCap(),
		TotalFundCommitted: p.TotalFundCommitted,
		Gate:               ido.GateConfigOf(p.Gate),
		Sale:               ido.SaleConfigOf(p.Sale),
		TicketCounter:      p.TicketCounter,
		RosterSize:         rosterSize,
		DistributionDust:   p.DistributionDust,
	}
}

// Project returns the projection of project id.
func (s *Service) Project(ctx context.Context, id ido.ProjectID) (ProjectView, error) {
	var v ProjectView
	err := s.store.View(ctx, func(tx store.ReadTx) error {
		p, err := loadProject(ctx, tx, id)
		if err != nil {
			return err
		}
		n, err := tx.RosterSize(ctx, id)
		if err != nil {
			return err
		}
		v = newProjectView(p, n)
		return nil
	})
	if err != nil {
		return ProjectView{}, ido.Scope(err, id, "")
	}
	return v, nil
}

// ListProjects pages through projects ordered by id, optionally restricted
// to one status. from is the index of the first project returned. A
// non-positive limit means DefaultPageSize; limits above MaxPageSize are
// clamped.
func (s *Service) ListProjects(ctx context.Context, status *ido.Status, from, limit int) ([]ProjectView, error) {
	if from < 0 {
		return nil, ido.NewInvalidArgument("from", "from must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	views := []ProjectView{}
	err := s.store.View(ctx, func(tx store.ReadTx) error {
		projects, err := tx.ListProjects(ctx, store.ProjectFilter{Status: status, Offset: from, Limit: limit})
		if err != nil {
			return err
		}
		for _, p := range projects {
			n, err := tx.RosterSize(ctx, p.ID)
			if err != nil {
				return err
			}
			views = append(views, newProjectView(p, n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// AccountView is the read projection of a ProjectAccount.
type AccountView struct {
	ProjectID    ido.ProjectID     `json:"project_id"`
	Account      string            `json:"account"`
	Whitelisted  bool              `json:"whitelisted"`
	Sale         *SaleView         `json:"sale,omitempty"`
	Distribution *DistributionView `json:"distribution,omitempty"`
}

// SaleView mirrors ido.SaleRecord.
type SaleView struct {
	Kind             string     `json:"kind"`
	Committed        ido.Amount `json:"committed"`
	EligibleTickets  uint64     `json:"eligible_tickets,omitempty"`
	DepositedTickets uint64     `json:"deposited_tickets,omitempty"`
	TicketIDs        []uint64   `json:"ticket_ids,omitempty"`
	WinningTicketIDs []uint64   `json:"winning_ticket_ids,omitempty"`
}

// DistributionView mirrors ido.DistributionRecord.
type DistributionView struct {
	Unlocked   ido.Amount `json:"unlocked"`
	Locked     ido.Amount `json:"locked"`
	Claimed    ido.Amount `json:"claimed"`
	Refundable ido.Amount `json:"refundable"`
	Refunded   ido.Amount `json:"refunded"`
}

// Account returns the projection of account within project id.
func (s *Service) Account(ctx context.Context, id ido.ProjectID, account string) (AccountView, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return AccountView{}, err
	}
	var v AccountView
	err = s.store.View(ctx, func(tx store.ReadTx) error {
		if _, err := loadProject(ctx, tx, id); err != nil {
			return err
		}
		in, err := tx.InRoster(ctx, id, account)
		if err != nil {
			return err
		}
		a, err := loadAccount(ctx, tx, id, account)
		if err != nil {
			return err
		}
		v = newAccountView(a, in)
		return nil
	})
	if err != nil {
		return AccountView{}, ido.Scope(err, id, account)
	}
	return v, nil
}

func newAccountView(a *ido.ProjectAccount, whitelisted bool) AccountView {
	v := AccountView{ProjectID: a.ProjectID, Account: a.Account, Whitelisted: whitelisted}
	if a.Sale != nil {
		sv := &SaleView{Kind: a.Sale.Data.Kind(), Committed: a.Committed()}
		if d, ok := a.Lottery(); ok {
			sv.EligibleTickets = d.EligibleTickets
			sv.DepositedTickets = d.DepositedTickets
			sv.TicketIDs = d.TicketIDs
			sv.WinningTicketIDs = d.WinningTicketIDs
		}
		v.Sale = sv
	}
	if d := a.Distribution; d != nil {
		v.Distribution = &DistributionView{
			Unlocked:   d.Unlocked,
			Locked:     d.Locked,
			Claimed:    d.Claimed,
			Refundable: d.Refundable,
			Refunded:   d.Refunded,
		}
	}
	return v
}
