// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// Project returns a valid, normalized project definition.
func Project(name string, sale ido.SaleModel, gate ido.Gate) *ido.Project {
	p := &ido.Project{
		Name:              name,
		WhitelistStart:    base.Add(1 * time.Hour),
		WhitelistEnd:      base.Add(2 * time.Hour),
		SaleStart:         base.Add(3 * time.Hour),
		SaleEnd:           base.Add(4 * time.Hour),
		TokenRaisedAmount: ido.NewAmount(1000),
		TokenSaleRate:     ido.Rate{Numerator: 1, Denominator: 10},
		Gate:              gate,
		Sale:              sale,
	}
	p.Normalize()
	return p
}

func shared() ido.SaleModel {
	return ido.SharedPool{Min: ido.NewAmount(10), Max: ido.NewAmount(200)}
}

func lottery() ido.SaleModel {
	return ido.Lottery{UnitPrice: ido.NewAmount(10), TotalTickets: 3}
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("ProjectRoundTrip", func(t *testing.T) { testProjectRoundTrip(t, open(t, newStore)) })
	t.Run("ProjectNotFound", func(t *testing.T) { testProjectNotFound(t, open(t, newStore)) })
	t.Run("ListProjects", func(t *testing.T) { testListProjects(t, open(t, newStore)) })
	t.Run("Roster", func(t *testing.T) { testRoster(t, open(t, newStore)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, open(t, newStore)) })
	t.Run("Tickets", func(t *testing.T) { testTickets(t, open(t, newStore)) })
	t.Run("ProjectIsolation", func(t *testing.T) { testProjectIsolation(t, open(t, newStore)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t, newStore)) })
	t.Run("Journal", func(t *testing.T) { testJournal(t, open(t, newStore)) })
}

func open(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func create(t *testing.T, s store.Store, p *ido.Project) ido.ProjectID {
	t.Helper()
	var id ido.ProjectID
	err := s.Update(context.Background(), func(tx store.Tx) error {
		var err error
		id, err = tx.CreateProject(context.Background(), p)
		return err
	})
	require.NoError(t, err)
	require.Positive(t, int64(id))
	return id
}

func testProjectRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := Project("alpha", lottery(), ido.BalanceGate{MinBalance: ido.MustAmount("123456789012345678901234567890")})
	id := create(t, s, want)

	want.Status = ido.StatusSales
	want.TicketCounter = 5
	want.TotalFundCommitted = ido.NewAmount(50)
	want.ID = id
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.PutProject(ctx, want) }))

	var got *ido.Project
	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		var err error
		got, err = tx.GetProject(ctx, id)
		return err
	}))

	assert.Equal(t, id, got.ID)
	assert.Equal(t, "alpha", got.Name)
	assert.True(t, want.WhitelistStart.Equal(got.WhitelistStart))
	assert.True(t, want.SaleEnd.Equal(got.SaleEnd))
	assert.Equal(t, "1000", got.TokenRaisedAmount.String())
	assert.Equal(t, want.TokenSaleRate, got.TokenSaleRate)
	assert.Equal(t, "50", got.TotalFundCommitted.String())
	assert.Equal(t, ido.StatusSales, got.Status)
	assert.Equal(t, uint64(5), got.TicketCounter)
	assert.Equal(t, ido.GateConfigOf(want.Gate), ido.GateConfigOf(got.Gate))
	assert.Equal(t, ido.SaleConfigOf(want.Sale), ido.SaleConfigOf(got.Sale))
	assert.True(t, got.DistributionDust.IsZero())
}

func testProjectNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(tx store.ReadTx) error {
		_, err := tx.GetProject(ctx, 42)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(ctx, func(tx store.Tx) error {
		p := Project("ghost", shared(), ido.OpenGate{})
		p.ID = 42
		return tx.PutProject(ctx, p)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.View(ctx, func(tx store.ReadTx) error {
		_, err := tx.GetAccount(ctx, 42, "alice")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListProjects(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []ido.ProjectID
	for _, name := range []string{"a", "b", "c", "d"} {
		ids = append(ids, create(t, s, Project(name, shared(), ido.OpenGate{})))
	}
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		p, err := tx.GetProject(ctx, ids[1])
		if err != nil {
			return err
		}
		p.Status = ido.StatusWhitelist
		return tx.PutProject(ctx, p)
	}))

	list := func(f store.ProjectFilter) []string {
		var names []string
		require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
			ps, err := tx.ListProjects(ctx, f)
			for _, p := range ps {
				names = append(names, p.Name)
			}
			return err
		}))
		return names
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, list(store.ProjectFilter{}))
	assert.Equal(t, []string{"b", "c"}, list(store.ProjectFilter{Offset: 1, Limit: 2}))
	prep := ido.StatusPreparation
	assert.Equal(t, []string{"a", "c", "d"}, list(store.ProjectFilter{Status: &prep}))
	wl := ido.StatusWhitelist
	assert.Equal(t, []string{"b"}, list(store.ProjectFilter{Status: &wl}))
	assert.Empty(t, list(store.ProjectFilter{Offset: 10}))
}

func testRoster(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := create(t, s, Project("alpha", shared(), ido.OpenGate{}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.AddToRoster(ctx, id, "alice") }))
	err := s.Update(ctx, func(tx store.Tx) error { return tx.AddToRoster(ctx, id, "alice") })
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.AddToRoster(ctx, id, "bob") }))

	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		in, err := tx.InRoster(ctx, id, "alice")
		require.NoError(t, err)
		assert.True(t, in)
		in, err = tx.InRoster(ctx, id, "carol")
		require.NoError(t, err)
		assert.False(t, in)
		n, err := tx.RosterSize(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	}))
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := Project("alpha", lottery(), ido.TicketGate{})
	p.ID = create(t, s, p)

	bob := ido.NewProjectAccount(p, "bob")
	alice := ido.NewProjectAccount(p, "alice")
	alice.Sale.Committed = ido.NewAmount(20)
	alice.Sale.Data = &ido.LotteryData{
		EligibleTickets:  6,
		DepositedTickets: 2,
		TicketIDs:        []uint64{0, 1},
		WinningTicketIDs: []uint64{1},
	}
	alice.Distribution = &ido.DistributionRecord{
		Unlocked:   ido.NewAmount(100),
		Locked:     ido.ZeroAmount(),
		Claimed:    ido.NewAmount(40),
		Refundable: ido.NewAmount(10),
		Refunded:   ido.ZeroAmount(),
	}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutAccount(ctx, bob); err != nil {
			return err
		}
		return tx.PutAccount(ctx, alice)
	}))

	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		got, err := tx.GetAccount(ctx, p.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, "20", got.Committed().String())
		data, ok := got.Lottery()
		require.True(t, ok)
		assert.Equal(t, uint64(6), data.EligibleTickets)
		assert.Equal(t, []uint64{0, 1}, data.TicketIDs)
		assert.Equal(t, []uint64{1}, data.WinningTicketIDs)
		require.NotNil(t, got.Distribution)
		assert.Equal(t, "100", got.Distribution.Unlocked.String())
		assert.Equal(t, "40", got.Distribution.Claimed.String())
		assert.Equal(t, "10", got.Distribution.Refundable.String())

		all, err := tx.ListAccounts(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Account)
		assert.Equal(t, "bob", all[1].Account)
		assert.Nil(t, all[1].Distribution)
		return nil
	}))

	alice.Sale.Committed = ido.NewAmount(30)
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.PutAccount(ctx, alice) }))
	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		got, err := tx.GetAccount(ctx, p.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, "30", got.Committed().String())
		return nil
	}))
}

func testTickets(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := create(t, s, Project("alpha", lottery(), ido.TicketGate{}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.AppendTickets(ctx, id, "bob", []uint64{2, 3}); err != nil {
			return err
		}
		return tx.AppendTickets(ctx, id, "alice", []uint64{0, 1})
	}))

	err := s.Update(ctx, func(tx store.Tx) error { return tx.AppendTickets(ctx, id, "carol", []uint64{3}) })
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.MarkWinners(ctx, id, []uint64{0, 2}) }))

	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		tickets, err := tx.ListTickets(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []ido.Ticket{
			{ID: 0, Account: "alice", Winning: true},
			{ID: 1, Account: "alice"},
			{ID: 2, Account: "bob", Winning: true},
			{ID: 3, Account: "bob"},
		}, tickets)
		return nil
	}))
}

func testProjectIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := Project("alpha", lottery(), ido.TicketGate{})
	first.ID = create(t, s, first)
	second := Project("beta", lottery(), ido.TicketGate{})
	second.ID = create(t, s, second)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, add := range []struct {
			id      ido.ProjectID
			account string
		}{{first.ID, "alice"}, {first.ID, "bob"}, {second.ID, "alice"}} {
			if err := tx.AddToRoster(ctx, add.id, add.account); err != nil {
				return err
			}
		}
		a1 := ido.NewProjectAccount(first, "alice")
		a1.Sale.Committed = ido.NewAmount(10)
		a2 := ido.NewProjectAccount(second, "alice")
		a2.Sale.Committed = ido.NewAmount(30)
		for _, a := range []*ido.ProjectAccount{a1, a2} {
			if err := tx.PutAccount(ctx, a); err != nil {
				return err
			}
		}
		if err := tx.AppendTickets(ctx, first.ID, "bob", []uint64{0}); err != nil {
			return err
		}
		if err := tx.AppendTickets(ctx, second.ID, "alice", []uint64{0}); err != nil {
			return err
		}
		return tx.MarkWinners(ctx, second.ID, []uint64{0})
	}))

	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		n, err := tx.RosterSize(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = tx.RosterSize(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		in, err := tx.InRoster(ctx, second.ID, "bob")
		require.NoError(t, err)
		assert.False(t, in)

		a, err := tx.GetAccount(ctx, second.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, "30", a.Committed().String())
		accounts, err := tx.ListAccounts(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "10", accounts[0].Committed().String())

		tickets, err := tx.ListTickets(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, []ido.Ticket{{ID: 0, Account: "bob"}}, tickets)
		tickets, err = tx.ListTickets(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, []ido.Ticket{{ID: 0, Account: "alice", Winning: true}}, tickets)
		return nil
	}))
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := create(t, s, Project("alpha", shared(), ido.OpenGate{}))
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.AddToRoster(ctx, id, "alice"); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		p.TotalFundCommitted = ido.NewAmount(99)
		if err := tx.PutProject(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx store.ReadTx) error {
		in, err := tx.InRoster(ctx, id, "alice")
		require.NoError(t, err)
		assert.False(t, in)
		p, err := tx.GetProject(ctx, id)
		require.NoError(t, err)
		assert.True(t, p.TotalFundCommitted.IsZero())
		return nil
	}))
}

func testJournal(t *testing.T, s store.Store) {
	ctx := context.Background()

	head, err := s.JournalHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), head)

	at := base.Add(90 * time.Minute)
	var entries []journal.Entry
	for i, spec := range []struct {
		req     string
		project ido.ProjectID
	}{{"req-a", 1}, {"req-b", 2}, {"req-a", 1}} {
		e, err := journal.New(int64(i+1), spec.req, "register", map[string]any{"account": "alice"}, at)
		require.NoError(t, err)
		e.ProjectID = spec.project
		e.Account = "alice"
		require.NoError(t, e.Complete(map[string]any{"pending": false}, nil))
		require.NoError(t, s.AppendJournal(ctx, e))
		entries = append(entries, e)
	}

	assert.ErrorIs(t, s.AppendJournal(ctx, entries[0]), store.ErrDuplicateKey)

	head, err = s.JournalHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), head)

	all, err := s.ReadJournal(ctx, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, entries[0].ID, all[0].ID)
	assert.Equal(t, journal.OutcomeOK, all[0].Outcome)
	assert.JSONEq(t, `{"account":"alice"}`, string(all[0].Args))
	assert.JSONEq(t, `{"pending":false}`, string(all[0].Result))
	assert.True(t, at.Equal(all[0].At))

	byReq, err := s.ReadJournal(ctx, journal.Filter{RequestID: "req-a"})
	require.NoError(t, err)
	require.Len(t, byReq, 2)
	assert.Equal(t, int64(1), byReq[0].Seq)
	assert.Equal(t, int64(3), byReq[1].Seq)

	byProject, err := s.ReadJournal(ctx, journal.Filter{ProjectID: 2})
	require.NoError(t, err)
	require.Len(t, byProject, 1)

	page, err := s.ReadJournal(ctx, journal.Filter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Seq)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(all[2].Args, &decoded))
	assert.Equal(t, "alice", decoded["account"])
}
