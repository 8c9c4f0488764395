package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

func sampleResult() *Result {
	r := NewResult()
	r.Projects["alpha"] = 1
	r.Projects["beta"] = 2
	r.Journal = []journal.Entry{
		{Seq: 1, RequestID: "req-1", Kind: "create_project", ProjectID: 1, Outcome: journal.OutcomeOK},
		{Seq: 2, RequestID: "req-2", Kind: "advance", ProjectID: 1, Outcome: journal.OutcomeOK},
		{Seq: 3, RequestID: "req-3", Kind: "register", ProjectID: 1, Account: "alice", Outcome: journal.OutcomeOK},
		{Seq: 4, RequestID: "req-3", Kind: "resolve", ProjectID: 1, Account: "alice", Outcome: journal.OutcomeError, ErrorCode: "INSUFFICIENT_BALANCE"},
		{Seq: 5, RequestID: "req-4", Kind: "register", ProjectID: 2, Account: "bob", Outcome: journal.OutcomeOK},
		{Seq: 6, RequestID: "req-4", Kind: "resolve", ProjectID: 2, Account: "bob", Outcome: journal.OutcomeOK},
	}
	return r
}

func TestAssertJournalContains(t *testing.T) {
	r := sampleResult()

	tests := []struct {
		name  string
		a     Assertion
		found bool
	}{
		{"kind only", Assertion{Kind: "resolve"}, true},
		{"kind and code", Assertion{Kind: "resolve", Code: "INSUFFICIENT_BALANCE"}, true},
		{"wrong account for code", Assertion{Kind: "resolve", Account: "bob", Code: "INSUFFICIENT_BALANCE"}, false},
		{"project filter", Assertion{Kind: "register", Project: "beta", Account: "bob"}, true},
		{"project excludes", Assertion{Kind: "register", Project: "beta", Account: "alice"}, false},
		{"outcome filter", Assertion{Kind: "advance", Outcome: OutcomeError}, false},
		{"missing kind", Assertion{Kind: "claim"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertJournalContains
			err := assertJournalContains(r, tt.a)
			if tt.found {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertJournalContains, ae.Type)
			assert.Equal(t, "not found in journal", ae.Actual)
			assert.Len(t, ae.Journal, len(r.Journal))
		})
	}
}

func TestAssertJournalContains_UnknownProject(t *testing.T) {
	err := assertJournalContains(sampleResult(), Assertion{Kind: "advance", Project: "omega"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown project "omega"`)
}

func TestAssertJournalOrder(t *testing.T) {
	entries := sampleResult().Journal

	assert.NoError(t, assertJournalOrder(entries, Assertion{Kinds: []string{"create_project", "advance", "resolve"}}))
	// Non-consecutive kinds still count as ordered.
	assert.NoError(t, assertJournalOrder(entries, Assertion{Kinds: []string{"create_project", "register"}}))

	err := assertJournalOrder(entries, Assertion{Kinds: []string{"resolve", "register"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "resolve (pos 4) should be before register (pos 3)")

	err = assertJournalOrder(entries, Assertion{Kinds: []string{"advance", "claim"}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "missing kind: claim", ae.Actual)
}

func TestAssertJournalCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertJournalCount(r, Assertion{Kind: "register", Count: 2}))
	assert.NoError(t, assertJournalCount(r, Assertion{Kind: "resolve", Outcome: OutcomeOK, Count: 1}))
	assert.NoError(t, assertJournalCount(r, Assertion{Kind: "claim", Count: 0}))

	err := assertJournalCount(r, Assertion{Kind: "register", Project: "alpha", Count: 2})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 entries of register project=alpha", ae.Expected)
	assert.Equal(t, "1 entries", ae.Actual)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertJournalCount,
		Expected: "1 entries of claim",
		Actual:   "0 entries",
		Journal:  sampleResult().Journal[:2],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: journal_count")
	assert.Contains(t, msg, "Expected: 1 entries of claim")
	assert.Contains(t, msg, "Actual: 0 entries")
	assert.Contains(t, msg, "req-2 2 advance ok")
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"status": "Sales",
		"sale": map[string]any{
			"committed":  "25",
			"ticket_ids": []any{float64(0), float64(1)},
		},
		"roster_size": float64(2),
	}

	tests := []struct {
		name     string
		expected any
		path     string
		ok       bool
	}{
		{"empty matches", map[string]any{}, "", true},
		{"top level", map[string]any{"status": "Sales"}, "", true},
		{"nested", map[string]any{"sale": map[string]any{"committed": "25"}}, "", true},
		{"list exact", map[string]any{"sale": map[string]any{"ticket_ids": []any{float64(0), float64(1)}}}, "", true},
		{"list differs", map[string]any{"sale": map[string]any{"ticket_ids": []any{float64(0)}}}, "sale.ticket_ids", false},
		{"value differs", map[string]any{"roster_size": float64(3)}, "roster_size", false},
		{"missing key", map[string]any{"sale": map[string]any{"refunded": "0"}}, "sale.refunded", false},
		{"object versus scalar", map[string]any{"status": map[string]any{"name": "Sales"}}, "status", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := matchSubset(tt.expected, actual, "")
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, tt.path, path)
			}
		})
	}
}

func TestToJSONValue_NormalizesYAMLNumbers(t *testing.T) {
	got, err := toJSONValue(map[string]interface{}{"count": 6, "amount": ido.NewAmount(25)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": float64(6), "amount": "25"}, got)
}

func TestLookup(t *testing.T) {
	v := map[string]any{"a": map[string]any{"b": "c"}}
	assert.Equal(t, "c", lookup(v, "a.b"))
	assert.Equal(t, v, lookup(v, ""))
	assert.Nil(t, lookup(v, "a.b.c"))
	assert.Nil(t, lookup(v, "x"))
}

func TestAssertTransferTotal(t *testing.T) {
	ledger := allocation.NewLedger()
	ctx := context.Background()
	require.NoError(t, ledger.Transfer(ctx, allocation.Transfer{Recipient: "alice", Asset: allocation.AssetToken, Amount: ido.NewAmount(150)}))
	require.NoError(t, ledger.Transfer(ctx, allocation.Transfer{Recipient: "alice", Asset: allocation.AssetToken, Amount: ido.NewAmount(50)}))
	require.NoError(t, ledger.Transfer(ctx, allocation.Transfer{Recipient: "alice", Asset: allocation.AssetFund, Amount: ido.NewAmount(5)}))

	actx := &AssertionContext{Ctx: ctx, Ledger: ledger}

	assert.NoError(t, assertTransferTotal(actx, Assertion{Account: "alice", Asset: "token", Total: "200"}))
	assert.NoError(t, assertTransferTotal(actx, Assertion{Account: "alice", Asset: "fund", Total: "5"}))
	assert.NoError(t, assertTransferTotal(actx, Assertion{Account: "bob", Asset: "fund", Total: "0"}))

	err := assertTransferTotal(actx, Assertion{Account: "alice", Asset: "token", Total: "100"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "200 paid", ae.Actual)

	err = assertTransferTotal(actx, Assertion{Account: "alice", Asset: "token", Total: "lots"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total")
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertJournalContains, Kind: "advance"},
		{Type: AssertJournalCount, Kind: "resolve", Count: 5},
		{Type: AssertProjectState, Project: "alpha", Expect: map[string]interface{}{"status": "Sales"}},
		{Type: "trace_contains"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "journal_count")
	assert.Contains(t, errs[1], "assertion[2]: project_state requires a service context")
	assert.Contains(t, errs[2], `assertion[3]: unknown assertion type "trace_contains"`)
}
