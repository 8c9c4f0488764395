package ido

import (
	"fmt"
	"math"
)

// MaxTicketsPerCommit bounds the tickets one lottery deposit may buy.
const MaxTicketsPerCommit = 10_000

// CommitResult reports what a commit actually applied.
type CommitResult struct {
	// Applied is the amount added to the account and the project total.
	Applied Amount
	// Remainder is the part of the contribution the core did not keep.
	// The settlement collaborator owes it back to the caller.
	Remainder Amount
	// TicketIDs are the lottery tickets issued by this commit.
	TicketIDs []uint64
}

// CommitShared checks a shared-pool contribution and returns the account's
// new committed total. The bound is inclusive: min <= prior+amount <= max.
func CommitShared(model SharedPool, prior, amount Amount) (Amount, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return ZeroAmount(), NewInvalidArgument("amount", "amount must be positive")
	}
	total := orZero(prior).Add(amount)
	if total.LT(model.Min) || total.GT(model.Max) {
		e := newError(ErrCodeContributionOutOfBounds,
			"total contribution %s must be between %s and %s", total, model.Min, model.Max)
		e.Details = map[string]string{
			"prior":  orZero(prior).String(),
			"amount": amount.String(),
			"min":    model.Min.String(),
			"max":    model.Max.String(),
		}
		return ZeroAmount(), e
	}
	return total, nil
}

// LotteryQuote is the outcome of pricing a lottery deposit.
type LotteryQuote struct {
	Tickets   uint64
	Applied   Amount
	Remainder Amount
}

// QuoteLottery prices a lottery deposit: floor(amount/unitPrice) tickets,
// which must be at least one, must fit in the account's eligibility and
// must not exceed MaxTicketsPerCommit.
func QuoteLottery(model Lottery, data *LotteryData, amount Amount) (LotteryQuote, error) {
	if amount.IsNil() || amount.IsNegative() {
		return LotteryQuote{}, NewInvalidArgument("amount", "amount must be non-negative")
	}
	granted := amount.Quo(model.UnitPrice)
	if granted.IsZero() {
		e := newError(ErrCodeBelowMinimumTicketPrice,
			"must deposit at least %s to buy a ticket", model.UnitPrice)
		e.Details = map[string]string{"unit_price": model.UnitPrice.String(), "amount": amount.String()}
		return LotteryQuote{}, e
	}

	available := uint64(0)
	if data.EligibleTickets > data.DepositedTickets {
		available = data.EligibleTickets - data.DepositedTickets
	}
	if !granted.IsUint64() || granted.Uint64() > available {
		e := newError(ErrCodeEligibilityExceeded,
			"%s tickets requested, %d of %d eligible tickets left", granted, available, data.EligibleTickets)
		e.Details = map[string]string{
			"requested": granted.String(),
			"eligible":  fmt.Sprintf("%d", data.EligibleTickets),
			"deposited": fmt.Sprintf("%d", data.DepositedTickets),
		}
		return LotteryQuote{}, e
	}
	if granted.Uint64() > MaxTicketsPerCommit {
		e := NewInvalidArgument("amount",
			fmt.Sprintf("%s tickets requested, at most %d per commit", granted, MaxTicketsPerCommit))
		e.Details["requested"] = granted.String()
		return LotteryQuote{}, e
	}

	applied := granted.Mul(model.UnitPrice)
	return LotteryQuote{
		Tickets:   granted.Uint64(),
		Applied:   applied,
		Remainder: amount.Sub(applied),
	}, nil
}

// IssueTickets returns n consecutive ticket ids starting at the project's
// counter, and the counter's next value.
func IssueTickets(counter, n uint64) ([]uint64, uint64, error) {
	if n > MaxTicketsPerCommit {
		return nil, counter, NewInvalidArgument("tickets",
			fmt.Sprintf("cannot issue %d tickets, at most %d per commit", n, MaxTicketsPerCommit))
	}
	if n > math.MaxUint64-counter {
		return nil, counter, fmt.Errorf("ticket counter %d overflows issuing %d tickets", counter, n)
	}
	ids := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		ids = append(ids, counter+i)
	}
	return ids, counter + n, nil
}
