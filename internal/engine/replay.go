package engine

// # Replay
//
// Replay re-executes a journal against an empty memory store and reports
// every entry whose outcome differs from the recorded one.
//
// The same code path handles live execution and replay: each entry is
// decoded back into its Operation and run through execute at its recorded
// effective time and request id. Because the logical clock starts at 0
// and staking query ids derive from the request id, an unmodified journal
// reproduces its entry ids, error codes and results byte for byte.
//
// Collaborators are the only part of the world replay cannot see. They
// are replaced by a stand-in that fails exactly where the journal says
// the live call failed: entries that ended in EXTERNAL_CALL_FAILED and
// commits whose remainder refund was deferred. Resolutions arrive as their
// own journal entries, so the stand-in dispatcher answers nothing.
//
// Replay needs the whole journal from seq 1; a filtered slice diverges at
// its first entry.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store/memory"
)

// Divergence is one field of one entry that replayed differently.
type Divergence struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
	Field     string `json:"field"`
	Want      string `json:"want"`
	Got       string `json:"got"`
}

// ReplayReport summarises a replay.
type ReplayReport struct {
	Entries     int          `json:"entries"`
	Divergences []Divergence `json:"divergences"`
}

// OK reports whether the replay matched the journal.
func (r ReplayReport) OK() bool {
	return len(r.Divergences) == 0
}

// Replay re-executes entries in seq order. opts configure the replay
// engine (tiers, logger); dispatcher and settlement options are ignored.
func Replay(ctx context.Context, entries []journal.Entry, opts ...Option) (ReplayReport, error) {
	report := ReplayReport{Divergences: []Divergence{}}
	if len(entries) == 0 {
		return report, nil
	}

	sorted := make([]journal.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	if sorted[0].Seq != 1 {
		return report, fmt.Errorf("replay: journal starts at seq %d, need 1", sorted[0].Seq)
	}

	stand := &standIn{}
	opts = append(append([]Option{}, opts...), WithDispatcher(stand), WithSettlement(stand))
	e, err := New(ctx, memory.New(), opts...)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}

	for _, want := range sorted {
		op, err := Decode(want.Kind, want.Args)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", want.Seq, err)
		}
		stand.fail = liveCallFailed(want)

		got, _, _ := e.execute(ctx, want.RequestID, op, want.At)
		report.Entries++
		report.Divergences = append(report.Divergences, compareEntries(want, got)...)
	}
	return report, nil
}

func compareEntries(want, got journal.Entry) []Divergence {
	var out []Divergence
	diff := func(field, w, g string) {
		if w != g {
			out = append(out, Divergence{
				Seq:       want.Seq,
				Kind:      want.Kind,
				RequestID: want.RequestID,
				Field:     field,
				Want:      w,
				Got:       g,
			})
		}
	}
	diff("id", want.ID, got.ID)
	diff("outcome", want.Outcome, got.Outcome)
	diff("error_code", want.ErrorCode, got.ErrorCode)
	if !bytes.Equal(want.Result, got.Result) {
		diff("result", string(want.Result), string(got.Result))
	}
	return out
}

// liveCallFailed reports whether the entry records a failed collaborator
// call.
func liveCallFailed(e journal.Entry) bool {
	if e.ErrorCode == string(ido.ErrCodeExternalCallFailed) {
		return true
	}
	if e.Kind != KindCommit || len(e.Result) == 0 {
		return false
	}
	var r struct {
		RefundDeferred bool `json:"refund_deferred"`
	}
	return json.Unmarshal(e.Result, &r) == nil && r.RefundDeferred
}

// standIn replaces the dispatcher and settlement during replay.
type standIn struct {
	fail bool
}

func (s *standIn) Dispatch(context.Context, resolver.Query) error {
	if s.fail {
		return fmt.Errorf("dispatch failed in the recorded run")
	}
	return nil
}

func (s *standIn) Transfer(context.Context, allocation.Transfer) error {
	if s.fail {
		return fmt.Errorf("transfer failed in the recorded run")
	}
	return nil
}
