package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/tier"
)

// RegisterResult reports the outcome of a registration.
// Exactly one of Registered and Pending is true.
type RegisterResult struct {
	Registered bool   `json:"registered"`
	Pending    bool   `json:"pending"`
	QueryID    string `json:"query_id,omitempty"`
}

// Register puts account on the project's roster, or dispatches a staking
// query when the project is balance gated.
//
// Checks, in order: project exists (NOT_FOUND), account not yet on the
// roster (ALREADY_REGISTERED), status Whitelist and now inside the
// whitelist window (NOT_IN_PERIOD).
func (s *Service) Register(ctx context.Context, now time.Time, id ido.ProjectID, account string) (RegisterResult, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return RegisterResult{}, err
	}

	var (
		result RegisterResult
		query  *resolver.Query
	)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		p, err := loadProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkRegistrable(ctx, tx, p, account, now); err != nil {
			return err
		}

		switch g := p.Gate.(type) {
		case ido.BalanceGate:
			query = &resolver.Query{
				ID:      s.ids.Generate(),
				Account: account,
				Continuation: resolver.Continuation{
					Kind:       resolver.ContinueWhitelist,
					ProjectID:  id,
					Account:    account,
					MinBalance: g.MinBalance.String(),
				},
			}
			result = RegisterResult{Pending: true, QueryID: query.ID}
			return nil
		default:
			result = RegisterResult{Registered: true}
			return admit(ctx, tx, p, account, 0)
		}
	})
	if err != nil {
		return RegisterResult{}, ido.Scope(err, id, account)
	}

	log := s.logFor(id, account)
	if query == nil {
		log.Info("account whitelisted")
		return result, nil
	}

	// The roster is untouched until the resolution arrives.
	if err := s.dispatcher.Dispatch(ctx, *query); err != nil {
		log.WithError(err).Warn("staking query dispatch failed")
		return RegisterResult{}, ido.Scope(ido.NewExternalCallFailed(fmt.Sprintf("dispatch staking query: %v", err)), id, account)
	}
	log.WithField("query_id", query.ID).Info("staking query dispatched")
	return result, nil
}

func checkRegistrable(ctx context.Context, tx store.ReadTx, p *ido.Project, account string, now time.Time) error {
	in, err := tx.InRoster(ctx, p.ID, account)
	if err != nil {
		return err
	}
	if in {
		return ido.NewAlreadyRegistered()
	}
	return p.CheckWhitelistOpen(now)
}

// admit adds account to the roster and creates its sale record.
func admit(ctx context.Context, tx store.Tx, p *ido.Project, account string, eligible uint64) error {
	if err := tx.AddToRoster(ctx, p.ID, account); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return ido.NewAlreadyRegistered()
		}
		return err
	}
	a := ido.NewProjectAccount(p, account)
	if d, ok := a.Lottery(); ok {
		d.EligibleTickets = eligible
	}
	return tx.PutAccount(ctx, a)
}

// ResolveResult reports what a resolution did.
type ResolveResult struct {
	Kind            resolver.ContinuationKind `json:"kind"`
	Tier            string                    `json:"tier"`
	Point           ido.Amount                `json:"point"`
	EligibleTickets uint64                    `json:"eligible_tickets"`
	Allocations     uint64                    `json:"allocations"`
}

// Resolve applies a staking service answer.
//
// A resolution without exactly one result fails with the fatal
// UNEXPECTED_RESULT_COUNT error. A failed result yields
// EXTERNAL_CALL_FAILED. Either way nothing is written.
func (s *Service) Resolve(ctx context.Context, now time.Time, res resolver.Resolution) (ResolveResult, error) {
	c := res.Continuation
	log := s.logFor(c.ProjectID, c.Account).WithField("query_id", res.QueryID)

	if err := c.Validate(); err != nil {
		return ResolveResult{}, err
	}
	stake, err := resolver.DecodeStake(res)
	if err != nil {
		if ido.IsFatal(err) {
			log.WithError(err).Error("resolver contract violated")
		} else {
			log.WithError(err).Warn("staking query failed")
		}
		return ResolveResult{}, ido.Scope(err, c.ProjectID, c.Account)
	}

	info := s.tiers.Evaluate(stake)
	result := ResolveResult{
		Kind:        c.Kind,
		Tier:        info.Tier.String(),
		Point:       info.Point,
		Allocations: info.Allocations,
	}

	switch c.Kind {
	case resolver.ContinueWhitelist:
		err = s.store.Update(ctx, func(tx store.Tx) error {
			eligible, err := s.resolveWhitelist(ctx, tx, now, c, info)
			result.EligibleTickets = eligible
			return err
		})
	case resolver.ContinueTickets:
		err = s.store.Update(ctx, func(tx store.Tx) error {
			eligible, err := refreshEligibility(ctx, tx, c.ProjectID, c.Account, info.Tickets)
			result.EligibleTickets = eligible
			return err
		})
	}
	if err != nil {
		return ResolveResult{}, ido.Scope(err, c.ProjectID, c.Account)
	}

	log.WithFields(logrus.Fields{
		"kind":     c.Kind,
		"tier":     result.Tier,
		"eligible": result.EligibleTickets,
	}).Info("staking query resolved")
	return result, nil
}

func (s *Service) resolveWhitelist(ctx context.Context, tx store.Tx, now time.Time, c resolver.Continuation, info tier.Info) (uint64, error) {
	p, err := loadProject(ctx, tx, c.ProjectID)
	if err != nil {
		return 0, err
	}
	if err := checkRegistrable(ctx, tx, p, c.Account, now); err != nil {
		return 0, err
	}
	// The gate is read from the project, not the continuation, so a query
	// cannot carry a weaker threshold than the project's.
	g, ok := p.Gate.(ido.BalanceGate)
	if !ok {
		return 0, ido.NewInvalidArgument("continuation.kind", "project is not balance gated")
	}
	if info.Point.LT(g.MinBalance) {
		return 0, ido.NewInsufficientBalance(info.Point, g.MinBalance)
	}

	var eligible uint64
	if _, lottery := p.Sale.(ido.Lottery); lottery {
		eligible = info.Tickets
	}
	return eligible, admit(ctx, tx, p, c.Account, eligible)
}

// checkTicketUpdate validates that account's lottery eligibility may change.
func checkTicketUpdate(ctx context.Context, tx store.ReadTx, id ido.ProjectID, account string) (*ido.Project, error) {
	p, err := loadProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Sale.(ido.Lottery); !ok {
		return nil, ido.NewInvalidArgument("sale", "project does not sell lottery tickets")
	}
	if err := requireMember(ctx, tx, id, account); err != nil {
		return nil, err
	}
	if p.Status != ido.StatusWhitelist && p.Status != ido.StatusSales {
		return nil, ido.NewNotInPeriod(fmt.Sprintf("tickets cannot change in %s", p.Status))
	}
	return p, nil
}

// refreshEligibility sets eligible = max(tierTickets, deposited).
func refreshEligibility(ctx context.Context, tx store.Tx, id ido.ProjectID, account string, tierTickets uint64) (uint64, error) {
	if _, err := checkTicketUpdate(ctx, tx, id, account); err != nil {
		return 0, err
	}
	a, err := loadAccount(ctx, tx, id, account)
	if err != nil {
		return 0, err
	}
	d, ok := a.Lottery()
	if !ok {
		return 0, fmt.Errorf("account %s has no lottery data", account)
	}
	d.EligibleTickets = tierTickets
	if d.DepositedTickets > d.EligibleTickets {
		d.EligibleTickets = d.DepositedTickets
	}
	return d.EligibleTickets, tx.PutAccount(ctx, a)
}

// GrantTickets raises account's lottery eligibility by count.
func (s *Service) GrantTickets(ctx context.Context, id ido.ProjectID, account string, count uint64) (uint64, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ido.NewInvalidArgument("count", "count must be positive")
	}

	var eligible uint64
	err = s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := checkTicketUpdate(ctx, tx, id, account); err != nil {
			return err
		}
		a, err := loadAccount(ctx, tx, id, account)
		if err != nil {
			return err
		}
		d, ok := a.Lottery()
		if !ok {
			return fmt.Errorf("account %s has no lottery data", account)
		}
		if err := d.Grant(count); err != nil {
			return err
		}
		eligible = d.EligibleTickets
		return tx.PutAccount(ctx, a)
	})
	if err != nil {
		return 0, ido.Scope(err, id, account)
	}
	s.logFor(id, account).WithField("eligible", eligible).Info("tickets granted")
	return eligible, nil
}

// RefreshTickets dispatches a staking query whose resolution recomputes
// account's eligibility from its current tier.
func (s *Service) RefreshTickets(ctx context.Context, id ido.ProjectID, account string) (RegisterResult, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return RegisterResult{}, err
	}
	err = s.store.View(ctx, func(tx store.ReadTx) error {
		_, err := checkTicketUpdate(ctx, tx, id, account)
		return err
	})
	if err != nil {
		return RegisterResult{}, ido.Scope(err, id, account)
	}

	q := resolver.Query{
		ID:      s.ids.Generate(),
		Account: account,
		Continuation: resolver.Continuation{
			Kind:      resolver.ContinueTickets,
			ProjectID: id,
			Account:   account,
		},
	}
	if err := s.dispatcher.Dispatch(ctx, q); err != nil {
		return RegisterResult{}, ido.Scope(ido.NewExternalCallFailed(fmt.Sprintf("dispatch staking query: %v", err)), id, account)
	}
	s.logFor(id, account).WithField("query_id", q.ID).Info("ticket refresh dispatched")
	return RegisterResult{Pending: true, QueryID: q.ID}, nil
}
