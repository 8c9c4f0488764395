package resolver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/tier"
)

// ContinuationKind names what the core does with a resolved query.
type ContinuationKind string

const (
	// ContinueWhitelist completes a balance-gated registration.
	ContinueWhitelist ContinuationKind = "whitelist"
	// ContinueTickets refreshes an account's lottery eligibility.
	ContinueTickets ContinuationKind = "tickets"
)

// Continuation is the state the core needs to finish an operation.
type Continuation struct {
	Kind       ContinuationKind `json:"kind"`
	ProjectID  ido.ProjectID    `json:"project_id"`
	Account    string           `json:"account"`
	MinBalance string           `json:"min_balance,omitempty"`
}

// Validate checks that the continuation names a known kind and target.
func (c Continuation) Validate() error {
	switch c.Kind {
	case ContinueWhitelist, ContinueTickets:
	default:
		return ido.NewInvalidArgument("continuation.kind", fmt.Sprintf("unknown continuation kind %q", c.Kind))
	}
	if c.ProjectID <= 0 {
		return ido.NewInvalidArgument("continuation.project_id", "project id is required")
	}
	if c.Account == "" {
		return ido.NewInvalidArgument("continuation.account", "account is required")
	}
	return nil
}

// Query is a request to the staking service for one account's position.
type Query struct {
	ID           string       `json:"query_id"`
	Account      string       `json:"account"`
	Continuation Continuation `json:"continuation"`
}

// Result is one answer from the staking service.
type Result struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Resolution is the staking service's reply to a Query.
type Resolution struct {
	QueryID      string       `json:"query_id"`
	Continuation Continuation `json:"continuation"`
	Results      []Result     `json:"results"`
}

// StakeInfo is the wire form of a staking position. Amounts are decimal
// strings; the duration is in seconds.
type StakeInfo struct {
	LockedAmount   string `json:"locked_amount"`
	LockedDuration int64  `json:"locked_duration"`
	Point          string `json:"point,omitempty"`
}

// StakeInfoOf converts a stake into its wire form.
func StakeInfoOf(s tier.Stake) StakeInfo {
	info := StakeInfo{
		LockedAmount:   "0",
		LockedDuration: int64(s.LockedDuration / time.Second),
	}
	if !s.LockedAmount.IsNil() {
		info.LockedAmount = s.LockedAmount.String()
	}
	if !s.Point.IsNil() {
		info.Point = s.Point.String()
	}
	return info
}

// Stake parses the wire form.
func (s StakeInfo) Stake() (tier.Stake, error) {
	locked, err := ido.ParseAmount(s.LockedAmount)
	if err != nil {
		return tier.Stake{}, fmt.Errorf("locked_amount: %w", err)
	}
	if s.LockedDuration < 0 {
		return tier.Stake{}, fmt.Errorf("locked_duration: negative")
	}
	stake := tier.Stake{
		LockedAmount:   locked,
		LockedDuration: time.Duration(s.LockedDuration) * time.Second,
	}
	if s.Point != "" {
		point, err := ido.ParseAmount(s.Point)
		if err != nil {
			return tier.Stake{}, fmt.Errorf("point: %w", err)
		}
		stake.Point = point
	}
	return stake, nil
}

// Success builds a successful Result carrying a stake.
func Success(s tier.Stake) Result {
	payload, err := json.Marshal(StakeInfoOf(s))
	if err != nil {
		// StakeInfo holds only strings and integers.
		panic(fmt.Sprintf("marshal stake info: %v", err))
	}
	return Result{Success: true, Payload: payload}
}

// Failure builds a failed Result.
func Failure(reason string) Result {
	return Result{Success: false, Error: reason}
}

// Resolve answers q with the given results.
func Resolve(q Query, results ...Result) Resolution {
	return Resolution{QueryID: q.ID, Continuation: q.Continuation, Results: results}
}
