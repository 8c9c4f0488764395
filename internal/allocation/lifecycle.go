package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

// AdvanceResult reports a completed transition.
type AdvanceResult struct {
	From    string     `json:"from"`
	To      string     `json:"to"`
	Winners uint64     `json:"winners,omitempty"`
	Dust    ido.Amount `json:"dust"`
}

// Advance moves project id to target, or to its next status when target
// is nil. The guard, the winner sweep and the distribution run in the
// same transaction as the status write.
func (s *Service) Advance(ctx context.Context, now time.Time, id ido.ProjectID, target *ido.Status) (AdvanceResult, error) {
	result := AdvanceResult{Dust: ido.ZeroAmount()}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		p, err := loadProject(ctx, tx, id)
		if err != nil {
			return err
		}
		to, ok := p.Status.Next()
		if target != nil {
			to = *target
		} else if !ok {
			return ido.NewInvalidTransition(p.Status, p.Status)
		}
		if err := ido.CheckTransition(p, to, now); err != nil {
			return err
		}
		result.From = p.Status.String()
		result.To = to.String()

		if _, lottery := p.Sale.(ido.Lottery); lottery && to != ido.StatusWhitelist {
			n, err := selectWinners(ctx, tx, p)
			if err != nil {
				return fmt.Errorf("select winners: %w", err)
			}
			result.Winners = n
		}
		if to == ido.StatusDistribution {
			dust, err := distribute(ctx, tx, p)
			if err != nil {
				return fmt.Errorf("distribute: %w", err)
			}
			result.Dust = dust
		}

		p.Status = to
		return tx.PutProject(ctx, p)
	})
	if err != nil {
		return AdvanceResult{}, ido.Scope(err, id, "")
	}

	s.logFor(id, "").WithFields(logrus.Fields{
		"from":    result.From,
		"to":      result.To,
		"winners": result.Winners,
	}).Info("project advanced")
	return result, nil
}

// selectWinners marks the next winning tickets and records them on their
// owners' accounts. It returns how many tickets it marked.
func selectWinners(ctx context.Context, tx store.Tx, p *ido.Project) (uint64, error) {
	model := p.Sale.(ido.Lottery)
	tickets, err := tx.ListTickets(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	winners := ido.SelectWinners(tickets, p.TicketCounter, model.TotalTickets)
	if len(winners) == 0 {
		return 0, nil
	}
	if err := tx.MarkWinners(ctx, p.ID, winners); err != nil {
		return 0, err
	}

	for account, ids := range ido.GroupByOwner(tickets, winners) {
		a, err := loadAccount(ctx, tx, p.ID, account)
		if err != nil {
			return 0, err
		}
		data, ok := a.Lottery()
		if !ok {
			return 0, fmt.Errorf("account %s has no lottery data", account)
		}
		data.WinningTicketIDs = append(data.WinningTicketIDs, ids...)
		if err := tx.PutAccount(ctx, a); err != nil {
			return 0, err
		}
	}
	return uint64(len(winners)), nil
}

// distribute writes every participant's DistributionRecord and the
// project's dust.
func distribute(ctx context.Context, tx store.Tx, p *ido.Project) (ido.Amount, error) {
	accounts, err := tx.ListAccounts(ctx, p.ID)
	if err != nil {
		return ido.Amount{}, err
	}
	plan, err := ido.Distribute(p, accounts)
	if err != nil {
		return ido.Amount{}, err
	}

	byAccount := make(map[string]*ido.ProjectAccount, len(accounts))
	for _, a := range accounts {
		byAccount[a.Account] = a
	}
	for _, alloc := range plan.Allocations {
		a := byAccount[alloc.Account]
		a.Distribution = &ido.DistributionRecord{
			Unlocked:   alloc.Unlocked,
			Locked:     ido.ZeroAmount(),
			Claimed:    ido.ZeroAmount(),
			Refundable: alloc.Refundable,
			Refunded:   ido.ZeroAmount(),
		}
		if err := tx.PutAccount(ctx, a); err != nil {
			return ido.Amount{}, err
		}
	}
	p.DistributionDust = plan.Dust
	return plan.Dust, nil
}
