package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

// CommitReceipt is the caller-facing result of a commit.
type CommitReceipt struct {
	Applied   ido.Amount `json:"applied"`
	Remainder ido.Amount `json:"remainder"`
	TicketIDs []uint64   `json:"ticket_ids,omitempty"`
	Committed ido.Amount `json:"committed"`
	// RefundDeferred is set when the remainder could not be returned
	// immediately and stays owed by settlement.
	RefundDeferred bool `json:"refund_deferred,omitempty"`
}

// Commit contributes amount of fund from account to project id.
//
// Checks, in order: project exists (NOT_FOUND), account on the roster
// (NOT_WHITELISTED), status Sales and now inside the sale window
// (NOT_IN_PERIOD). The model then applies its own bound.
func (s *Service) Commit(ctx context.Context, now time.Time, id ido.ProjectID, account string, amount ido.Amount) (CommitReceipt, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return CommitReceipt{}, err
	}
	if amount.IsNil() || amount.IsNegative() {
		return CommitReceipt{}, ido.NewInvalidArgument("amount", "amount must be a non-negative integer")
	}

	var (
		res       ido.CommitResult
		committed ido.Amount
	)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		p, err := loadProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, id, account); err != nil {
			return err
		}
		if err := p.CheckSaleOpen(now); err != nil {
			return err
		}
		a, err := loadAccount(ctx, tx, id, account)
		if err != nil {
			return err
		}

		switch model := p.Sale.(type) {
		case ido.SharedPool:
			res, err = commitShared(model, a, amount)
		case ido.Lottery:
			res, err = commitLottery(ctx, tx, p, model, a, amount)
		default:
			err = ido.NewInvalidArgument("sale", fmt.Sprintf("unsupported sale model %T", p.Sale))
		}
		if err != nil {
			return err
		}

		p.TotalFundCommitted = p.TotalFundCommitted.Add(res.Applied)
		committed = a.Sale.Committed
		if err := tx.PutAccount(ctx, a); err != nil {
			return err
		}
		return tx.PutProject(ctx, p)
	})
	if err != nil {
		return CommitReceipt{}, ido.Scope(err, id, account)
	}

	receipt := CommitReceipt{
		Applied:   res.Applied,
		Remainder: res.Remainder,
		TicketIDs: res.TicketIDs,
		Committed: committed,
	}
	log := s.logFor(id, account).WithFields(logrus.Fields{
		"applied":   res.Applied.String(),
		"remainder": res.Remainder.String(),
		"tickets":   len(res.TicketIDs),
	})

	if res.Remainder.IsPositive() {
		err := s.settlement.Transfer(ctx, Transfer{
			ProjectID: id,
			Recipient: account,
			Asset:     AssetFund,
			Amount:    res.Remainder,
			Memo:      "commit remainder",
		})
		if err != nil {
			receipt.RefundDeferred = true
			log.WithError(err).Warn("remainder refund deferred")
		}
	}
	log.Info("commit applied")
	return receipt, nil
}

func commitShared(model ido.SharedPool, a *ido.ProjectAccount, amount ido.Amount) (ido.CommitResult, error) {
	total, err := ido.CommitShared(model, a.Committed(), amount)
	if err != nil {
		return ido.CommitResult{}, err
	}
	a.Sale.Committed = total
	return ido.CommitResult{Applied: amount, Remainder: ido.ZeroAmount()}, nil
}

func commitLottery(ctx context.Context, tx store.Tx, p *ido.Project, model ido.Lottery, a *ido.ProjectAccount, amount ido.Amount) (ido.CommitResult, error) {
	data, ok := a.Lottery()
	if !ok {
		return ido.CommitResult{}, fmt.Errorf("account %s has no lottery data", a.Account)
	}
	quote, err := ido.QuoteLottery(model, data, amount)
	if err != nil {
		return ido.CommitResult{}, err
	}

	ids, next, err := ido.IssueTickets(p.TicketCounter, quote.Tickets)
	if err != nil {
		return ido.CommitResult{}, err
	}
	if err := tx.AppendTickets(ctx, p.ID, a.Account, ids); err != nil {
		return ido.CommitResult{}, err
	}
	p.TicketCounter = next
	data.DepositedTickets += quote.Tickets
	data.TicketIDs = append(data.TicketIDs, ids...)
	if err := data.CheckInvariant(); err != nil {
		return ido.CommitResult{}, err
	}
	a.Sale.Committed = a.Committed().Add(quote.Applied)

	return ido.CommitResult{Applied: quote.Applied, Remainder: quote.Remainder, TicketIDs: ids}, nil
}
