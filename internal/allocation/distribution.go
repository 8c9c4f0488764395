package allocation

import (
	"context"
	"fmt"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

// ClaimReceipt reports a settled claim or refund.
type ClaimReceipt struct {
	Amount    ido.Amount `json:"amount"`
	Claimed   ido.Amount `json:"claimed"`
	Remaining ido.Amount `json:"remaining"`
}

// distributionRecord loads account's DistributionRecord, requiring the
// project to be in Distribution.
func distributionRecord(ctx context.Context, tx store.ReadTx, id ido.ProjectID, account string) (*ido.ProjectAccount, error) {
	p, err := loadProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != ido.StatusDistribution {
		return nil, ido.NewNotInPeriod(fmt.Sprintf("project is in %s, not Distribution", p.Status))
	}
	a, err := loadAccount(ctx, tx, id, account)
	if err != nil {
		return nil, err
	}
	if a.Distribution == nil {
		return nil, ido.NewNotFound("distribution record", account)
	}
	return a, nil
}

// Claim transfers amount of unlocked tokens to account. Settlement runs
// first; the claimed amount is recorded only after it succeeds.
func (s *Service) Claim(ctx context.Context, id ido.ProjectID, account string, amount ido.Amount) (ClaimReceipt, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return ClaimReceipt{}, err
	}
	check := func(tx store.ReadTx) (*ido.ProjectAccount, error) {
		a, err := distributionRecord(ctx, tx, id, account)
		if err != nil {
			return nil, err
		}
		return a, ido.CheckClaim(a.Distribution, amount)
	}

	if err := s.store.View(ctx, func(tx store.ReadTx) error {
		_, err := check(tx)
		return err
	}); err != nil {
		return ClaimReceipt{}, ido.Scope(err, id, account)
	}

	log := s.logFor(id, account).WithField("amount", amount.String())
	err = s.settlement.Transfer(ctx, Transfer{
		ProjectID: id,
		Recipient: account,
		Asset:     AssetToken,
		Amount:    amount,
		Memo:      "claim",
	})
	if err != nil {
		log.WithError(err).Warn("claim transfer failed")
		return ClaimReceipt{}, ido.Scope(ido.NewExternalCallFailed(fmt.Sprintf("token transfer: %v", err)), id, account)
	}

	var receipt ClaimReceipt
	err = s.store.Update(ctx, func(tx store.Tx) error {
		a, err := check(tx)
		if err != nil {
			return err
		}
		d := a.Distribution
		d.Claimed = d.Claimed.Add(amount)
		receipt = ClaimReceipt{Amount: amount, Claimed: d.Claimed, Remaining: d.Unlocked.Sub(d.Claimed)}
		return tx.PutAccount(ctx, a)
	})
	if err != nil {
		log.WithError(err).Error("claim settled but not recorded")
		return ClaimReceipt{}, ido.Scope(err, id, account)
	}
	log.Info("tokens claimed")
	return receipt, nil
}

// ClaimRefund returns the account's outstanding refundable funds.
func (s *Service) ClaimRefund(ctx context.Context, id ido.ProjectID, account string) (ClaimReceipt, error) {
	account, err := ido.NormalizeAccount(account)
	if err != nil {
		return ClaimReceipt{}, err
	}
	owed := func(tx store.ReadTx) (*ido.ProjectAccount, ido.Amount, error) {
		a, err := distributionRecord(ctx, tx, id, account)
		if err != nil {
			return nil, ido.Amount{}, err
		}
		d := a.Distribution
		due := d.Refundable.Sub(d.Refunded)
		if !due.IsPositive() {
			return nil, ido.Amount{}, ido.NewInvalidArgument("refund", "nothing to refund")
		}
		return a, due, nil
	}

	var due ido.Amount
	if err := s.store.View(ctx, func(tx store.ReadTx) error {
		var err error
		_, due, err = owed(tx)
		return err
	}); err != nil {
		return ClaimReceipt{}, ido.Scope(err, id, account)
	}

	log := s.logFor(id, account).WithField("amount", due.String())
	err = s.settlement.Transfer(ctx, Transfer{
		ProjectID: id,
		Recipient: account,
		Asset:     AssetFund,
		Amount:    due,
		Memo:      "lottery refund",
	})
	if err != nil {
		log.WithError(err).Warn("refund transfer failed")
		return ClaimReceipt{}, ido.Scope(ido.NewExternalCallFailed(fmt.Sprintf("fund transfer: %v", err)), id, account)
	}

	var receipt ClaimReceipt
	err = s.store.Update(ctx, func(tx store.Tx) error {
		a, _, err := owed(tx)
		if err != nil {
			return err
		}
		d := a.Distribution
		d.Refunded = d.Refunded.Add(due)
		receipt = ClaimReceipt{Amount: due, Claimed: d.Refunded, Remaining: d.Refundable.Sub(d.Refunded)}
		return tx.PutAccount(ctx, a)
	})
	if err != nil {
		log.WithError(err).Error("refund settled but not recorded")
		return ClaimReceipt{}, ido.Scope(err, id, account)
	}
	log.Info("refund claimed")
	return receipt, nil
}
