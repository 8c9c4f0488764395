package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/config"
	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/store"
	fixtures "github.com/roach88/idocore/internal/testutil"
	"github.com/roach88/idocore/internal/tier"
)

// recordJournal runs a shared-pool project from creation to distribution
// against a SQLite file and returns its path. Each step runs under its
// own request id; commit-big is rejected.
func recordJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idocore.db")
	st, err := store.Open(path)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	tiers, err := tier.New(cfg.Tiers.Table())
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	clock := fixtures.NewManualClock(fixtures.Base)
	e, err := engine.New(context.Background(), st,
		engine.WithNow(clock.Now),
		engine.WithTiers(tiers),
		engine.WithSettlement(allocation.NewLedger()),
		engine.WithLogger(logger),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(context.Background())
	}()

	def := fixtures.Definition("alpha", fixtures.Open(), fixtures.Shared("10", "200"))
	steps := []struct {
		requestID string
		at        time.Time
		op        engine.Operation
		fails     bool
	}{
		{"create-1", fixtures.Base, engine.CreateProject{Definition: def}, false},
		{"advance-1", fixtures.InWhitelist, engine.Advance{ProjectID: 1}, false},
		{"register-alice", fixtures.InWhitelist, engine.Register{ProjectID: 1, Account: "alice"}, false},
		{"advance-2", fixtures.AfterWhitelist, engine.Advance{ProjectID: 1}, false},
		{"commit-ok", fixtures.InSale, engine.Commit{ProjectID: 1, Account: "alice", Amount: ido.NewAmount(50)}, false},
		{"commit-big", fixtures.InSale, engine.Commit{ProjectID: 1, Account: "alice", Amount: ido.NewAmount(500)}, true},
		{"advance-3", fixtures.AfterSale, engine.Advance{ProjectID: 1}, false},
	}
	for _, s := range steps {
		clock.Set(s.at)
		_, err := e.SubmitAs(context.Background(), s.requestID, s.op)
		if s.fails {
			require.Error(t, err, s.requestID)
		} else {
			require.NoError(t, err, s.requestID)
		}
	}

	e.Stop()
	<-done
	require.NoError(t, st.Close())
	return path
}

func TestTraceRejectedRequest(t *testing.T) {
	db := recordJournal(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "commit-big", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Request: commit-big")
	assert.Contains(t, out, "6 commit error CONTRIBUTION_OUT_OF_BOUNDS project=1 account=alice")
	assert.Contains(t, out, `"amount":"500"`)
	assert.Contains(t, out, "total contribution 550 must be between 10 and 200")
	assert.Contains(t, out, "Stats: 1 entries, 0 ok, 1 error(s)")
}

func TestTraceJSON(t *testing.T) {
	db := recordJournal(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "register-alice", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status    string      `json:"status"`
		RequestID string      `json:"request_id"`
		Data      TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "register-alice", resp.RequestID)

	require.Len(t, resp.Data.Timeline, 1)
	entry := resp.Data.Timeline[0]
	assert.Equal(t, engine.KindRegister, entry.Kind)
	assert.Equal(t, int64(3), entry.Seq)
	assert.Equal(t, journal.OutcomeOK, entry.Outcome)

	assert.Equal(t, 1, resp.Data.Stats.OK)
	assert.Equal(t, []ido.ProjectID{1}, resp.Data.Stats.Projects)
	assert.Equal(t, []string{"alice"}, resp.Data.Stats.Accounts)
}

func TestTraceKindFilter(t *testing.T) {
	db := recordJournal(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "advance-3", "--db", db, "--kind", engine.KindAdvance)
	require.NoError(t, err)
	assert.Contains(t, out, "7 advance ok project=1")
	assert.Contains(t, out, `"to":"Distribution"`)

	out, err = execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "advance-3", "--db", db, "--kind", engine.KindCommit)
	require.NoError(t, err)
	assert.Contains(t, out, "No journal entries found for request: advance-3")
}

func TestTraceUnknownRequest(t *testing.T) {
	db := recordJournal(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "nope", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No journal entries found for request: nope")
}

func TestCalculateTraceStats(t *testing.T) {
	entries := []journal.Entry{
		{Seq: 1, Kind: engine.KindCreateProject, Outcome: journal.OutcomeOK, ProjectID: 2},
		{Seq: 2, Kind: engine.KindRegister, Outcome: journal.OutcomeOK, ProjectID: 2, Account: "bob"},
		{Seq: 3, Kind: engine.KindCommit, Outcome: journal.OutcomeError, ProjectID: 1, Account: "alice"},
		{Seq: 4, Kind: engine.KindCommit, Outcome: journal.OutcomeOK, ProjectID: 1, Account: "bob"},
	}

	stats := calculateTraceStats(entries)
	assert.Equal(t, 4, stats.TotalEntries)
	assert.Equal(t, 3, stats.OK)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, []ido.ProjectID{1, 2}, stats.Projects)
	assert.Equal(t, []string{"alice", "bob"}, stats.Accounts)

	assert.Len(t, filterKind(entries, engine.KindCommit), 2)
	assert.Len(t, filterKind(entries, ""), 4)
}
