package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/testutil"
	"github.com/roach88/idocore/internal/tier"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type harness struct {
	engine *Engine
	store  store.Store
	clock  *testutil.ManualClock
	ledger *allocation.Ledger
}

// startEngine runs an engine over st until the test ends.
func startEngine(t *testing.T, st store.Store, opts ...Option) *harness {
	t.Helper()
	tiers, err := tier.New(tier.DefaultConfig(0))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	h := &harness{
		store:  st,
		clock:  testutil.NewManualClock(testutil.Base),
		ledger: allocation.NewLedger(),
	}
	base := []Option{
		WithNow(h.clock.Now),
		WithRequestIDs(NewSequenceGenerator("req")),
		WithSettlement(h.ledger),
		WithTiers(tiers),
		WithLogger(logger),
	}
	h.engine, err = New(context.Background(), st, append(base, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) submit(t *testing.T, at time.Time, op Operation) Reply {
	t.Helper()
	h.clock.Set(at)
	r, _ := h.engine.Submit(context.Background(), op)
	return r
}

func (h *harness) create(t *testing.T, def ido.Definition) ido.ProjectID {
	t.Helper()
	r := h.submit(t, testutil.Base, CreateProject{Definition: def})
	require.NoError(t, r.Err)
	return r.Result.(Created).ProjectID
}

func (h *harness) journal(t *testing.T) []journal.Entry {
	t.Helper()
	entries, err := h.store.ReadJournal(context.Background(), journal.Filter{})
	require.NoError(t, err)
	return entries
}

func summaries(entries []journal.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Summary()
	}
	return out
}

func TestEngine_SubmitJournalsEveryOperation(t *testing.T) {
	h := startEngine(t, setupTestStore(t))
	id := h.create(t, testutil.Definition("alpha", testutil.Open(), testutil.Shared("10", "200")))

	r := h.submit(t, testutil.InWhitelist, Advance{ProjectID: id})
	require.NoError(t, r.Err)
	assert.Equal(t, "Whitelist", r.Result.(allocation.AdvanceResult).To)

	r = h.submit(t, testutil.InWhitelist, Register{ProjectID: id, Account: "alice"})
	require.NoError(t, r.Err)
	assert.Equal(t, int64(3), r.Seq)
	assert.Equal(t, "req-3", r.RequestID)

	r = h.submit(t, testutil.InWhitelist, Commit{ProjectID: id, Account: "alice", Amount: ido.NewAmount(15)})
	assert.True(t, ido.HasCode(r.Err, ido.ErrCodeNotInPeriod))

	entries := h.journal(t)
	assert.Equal(t, []string{
		"1 create_project ok",
		"2 advance ok",
		"3 register ok",
		"4 commit error NOT_IN_PERIOD",
	}, summaries(entries))

	assert.Equal(t, id, entries[0].ProjectID)
	assert.Equal(t, "alice", entries[2].Account)
	assert.JSONEq(t, `{"registered":true,"pending":false}`, string(entries[2].Result))
	assert.True(t, entries[1].At.Equal(testutil.InWhitelist))
	assert.Equal(t, int64(4), h.engine.Clock().Current())
}

func TestEngine_EntryIDsAreContentAddressed(t *testing.T) {
	h := startEngine(t, setupTestStore(t))
	h.create(t, testutil.Definition("alpha", testutil.Open(), testutil.Shared("10", "200")))

	e := h.journal(t)[0]
	want, err := journal.EntryID(e.RequestID, e.Kind, e.Args, e.Seq)
	require.NoError(t, err)
	assert.Equal(t, want, e.ID)
}

func TestEngine_ResumesClockFromJournal(t *testing.T) {
	st := setupTestStore(t)
	logger, _ := test.NewNullLogger()

	first, err := New(context.Background(), st, WithLogger(logger))
	require.NoError(t, err)
	_, _, err = first.execute(context.Background(), "r-1",
		CreateProject{Definition: testutil.Definition("alpha", testutil.Open(), testutil.Shared("10", "200"))},
		testutil.Base)
	require.NoError(t, err)

	second, err := New(context.Background(), st, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Clock().Current())
}

func TestEngine_SubmitAfterStop(t *testing.T) {
	h := startEngine(t, setupTestStore(t))
	h.engine.Stop()

	_, err := h.engine.Submit(context.Background(), Register{ProjectID: 1, Account: "alice"})
	assert.ErrorIs(t, err, ErrStopped)
	_, ok := h.engine.Enqueue(Register{ProjectID: 1, Account: "alice"})
	assert.False(t, ok)
}

func TestEngine_CancelRejectsQueuedJobs(t *testing.T) {
	st := setupTestStore(t)
	logger, _ := test.NewNullLogger()
	e, err := New(context.Background(), st, WithLogger(logger))
	require.NoError(t, err)

	replies := make(chan Reply, 2)
	for _, account := range []string{"alice", "bob"} {
		go func() {
			r, _ := e.SubmitAs(context.Background(), "req-"+account, Register{ProjectID: 1, Account: account})
			replies <- r
		}()
	}
	require.Eventually(t, func() bool { return e.queue.Len() == 2 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-replies:
			assert.ErrorIs(t, r.Err, ErrStopped)
			seen[r.RequestID] = true
		case <-time.After(time.Second):
			t.Fatal("queued submitter was never answered")
		}
	}
	assert.Equal(t, map[string]bool{"req-alice": true, "req-bob": true}, seen)
	assert.Equal(t, int64(0), e.Clock().Current())

	_, err = e.Submit(context.Background(), Register{ProjectID: 1, Account: "carol"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngine_SubmitHonoursContext(t *testing.T) {
	st := setupTestStore(t)
	logger, _ := test.NewNullLogger()
	e, err := New(context.Background(), st, WithLogger(logger))
	require.NoError(t, err)

	// No Run loop: the wait can only end through the context.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Submit(ctx, Register{ProjectID: 1, Account: "alice"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_LocalResolverRoundTrip(t *testing.T) {
	local := resolver.NewLocal(nil)
	local.SetStake("alice", tier.Stake{LockedAmount: ido.NewAmount(500), LockedDuration: tier.PointPeriod})
	h := startEngine(t, setupTestStore(t), WithDispatcher(local))
	local.SetSink(h.engine.ResolverSink())

	id := h.create(t, testutil.Definition("alpha", testutil.Balance("100"), testutil.Shared("10", "200")))
	require.NoError(t, h.submit(t, testutil.InWhitelist, Advance{ProjectID: id}).Err)

	r := h.submit(t, testutil.InWhitelist, Register{ProjectID: id, Account: "alice"})
	require.NoError(t, r.Err)
	pending := r.Result.(allocation.RegisterResult)
	assert.True(t, pending.Pending)
	assert.Equal(t, r.RequestID+"/1", pending.QueryID)

	require.Eventually(t, func() bool {
		v, err := h.engine.Service().Account(context.Background(), id, "alice")
		return err == nil && v.Whitelisted
	}, time.Second, 5*time.Millisecond)

	entries := h.journal(t)
	require.Len(t, entries, 4)
	assert.Equal(t, "4 resolve ok", entries[3].Summary())
	assert.Equal(t, r.RequestID, entries[3].RequestID)

	traced, err := h.store.ReadJournal(context.Background(), journal.Filter{RequestID: r.RequestID})
	require.NoError(t, err)
	assert.Len(t, traced, 2)
}

func TestEngine_SerialisesConcurrentCommits(t *testing.T) {
	h := startEngine(t, setupTestStore(t))
	id := h.create(t, testutil.Definition("alpha", testutil.Open(), testutil.Shared("1", "200")))
	require.NoError(t, h.submit(t, testutil.InWhitelist, Advance{ProjectID: id}).Err)

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, h.submit(t, testutil.InWhitelist, Register{ProjectID: id, Account: fmt.Sprintf("acct-%02d", i)}).Err)
	}
	require.NoError(t, h.submit(t, testutil.AfterWhitelist, Advance{ProjectID: id}).Err)
	h.clock.Set(testutil.InSale)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.engine.Submit(context.Background(), Commit{
				ProjectID: id,
				Account:   fmt.Sprintf("acct-%02d", i),
				Amount:    ido.NewAmount(uint64(i + 1)),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	v, err := h.engine.Service().Project(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "210", v.TotalFundCommitted.String())

	entries := h.journal(t)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestEngine_LogsFailuresAtDebug(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h := startEngine(t, setupTestStore(t), WithLogger(logger))

	r := h.submit(t, testutil.InWhitelist, Register{ProjectID: 9, Account: "alice"})
	require.Error(t, r.Err)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "operation failed" {
			found = true
			assert.Equal(t, "NOT_FOUND", e.Data["code"])
		}
	}
	assert.True(t, found)
}
