package ido

import "fmt"

// Allocation is one account's distribution outcome.
type Allocation struct {
	Account    string
	Unlocked   Amount
	Refundable Amount
}

// DistributionPlan is the result of distributing a project.
type DistributionPlan struct {
	Allocations []Allocation
	// Dust is TokenRaisedAmount minus the sum of unlocked amounts.
	Dust Amount
}

// Distribute computes every account's unlocked entitlement.
// Accounts with a zero committed amount get no allocation.
//
// SharedPool: unlocked = committed * tokenRaisedAmount / totalFundCommitted,
// truncated. Lottery: unlocked = winning tickets * tokens per ticket, and
// the losing deposits become refundable.
//
// The plan never allocates more than TokenRaisedAmount; whatever
// truncation leaves over is reported as Dust.
func Distribute(p *Project, accounts []*ProjectAccount) (DistributionPlan, error) {
	plan := DistributionPlan{Dust: orZero(p.TokenRaisedAmount)}
	total := orZero(p.TotalFundCommitted)

	switch model := p.Sale.(type) {
	case SharedPool:
		for _, a := range accounts {
			committed := a.Committed()
			if committed.IsZero() {
				continue
			}
			unlocked := MulDiv(committed, p.TokenRaisedAmount, total)
			plan.Allocations = append(plan.Allocations, Allocation{
				Account:    a.Account,
				Unlocked:   unlocked,
				Refundable: ZeroAmount(),
			})
			plan.Dust = plan.Dust.Sub(unlocked)
		}

	case Lottery:
		perTicket := p.TokenSaleRate.DividedBy(model.UnitPrice)
		for _, a := range accounts {
			committed := a.Committed()
			if committed.IsZero() {
				continue
			}
			data, ok := a.Lottery()
			if !ok {
				return DistributionPlan{}, fmt.Errorf("account %s has no lottery data", a.Account)
			}
			won := uint64(len(data.WinningTicketIDs))
			lost := data.DepositedTickets - won
			unlocked := perTicket.Mul(NewAmount(won))
			plan.Allocations = append(plan.Allocations, Allocation{
				Account:    a.Account,
				Unlocked:   unlocked,
				Refundable: model.UnitPrice.Mul(NewAmount(lost)),
			})
			plan.Dust = plan.Dust.Sub(unlocked)
		}

	default:
		return DistributionPlan{}, NewInvalidArgument("sale", fmt.Sprintf("unsupported sale model %T", p.Sale))
	}

	if plan.Dust.IsNegative() {
		return DistributionPlan{}, fmt.Errorf("distribution of project %d exceeds token raised amount by %s",
			p.ID, plan.Dust.Neg())
	}
	return plan, nil
}

// CheckClaim validates claiming amount more tokens from rec.
func CheckClaim(rec *DistributionRecord, amount Amount) error {
	if amount.IsNil() || !amount.IsPositive() {
		return NewInvalidArgument("amount", "claim amount must be positive")
	}
	if orZero(rec.Claimed).Add(amount).GT(orZero(rec.Unlocked)) {
		e := newError(ErrCodeClaimExceedsUnlocked, "claim of %s exceeds unlocked %s (claimed %s)",
			amount, orZero(rec.Unlocked), orZero(rec.Claimed))
		return e
	}
	return nil
}
