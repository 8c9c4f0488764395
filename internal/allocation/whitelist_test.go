package allocation

import (
	"context"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/resolver"
)

func TestRegister_OpenGate(t *testing.T) {
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	res, err := f.svc.Register(context.Background(), inWhitelist, id, "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, RegisterResult{Registered: true}, res)

	v := f.account(t, id, "alice")
	assert.True(t, v.Whitelisted)
	require.NotNil(t, v.Sale)
	assert.Equal(t, ido.SaleKindShared, v.Sale.Kind)
	assert.Equal(t, "0", v.Sale.Committed.String())
	assert.Nil(t, v.Distribution)
	assert.Empty(t, f.recorder.Queries())
}

func TestRegister_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.TicketGate{}, lottery(10, 5)))
	f.register(t, id, "alice")

	_, err := f.svc.Register(context.Background(), inWhitelist, id, "alice")
	assert.True(t, ido.HasCode(err, ido.ErrCodeAlreadyRegistered))

	// Membership is checked before the window.
	_, err = f.svc.Register(context.Background(), afterWhitelist, id, "ALICE")
	assert.True(t, ido.HasCode(err, ido.ErrCodeAlreadyRegistered))

	assert.Equal(t, 1, f.project(t, id).RosterSize)
}

func TestRegister_Preconditions(t *testing.T) {
	f := newFixture(t)
	prep := f.create(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))
	open := f.toWhitelist(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	tests := []struct {
		name string
		id   ido.ProjectID
		at   string
		code ido.ErrorCode
	}{
		{"missing project", 99, "in", ido.ErrCodeNotFound},
		{"preparation", prep, "in", ido.ErrCodeNotInPeriod},
		{"before window", open, "before", ido.ErrCodeNotInPeriod},
		{"after window", open, "after", ido.ErrCodeNotInPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := inWhitelist
			switch tt.at {
			case "before":
				now = beforeWhitelist
			case "after":
				now = afterWhitelist
			}
			_, err := f.svc.Register(context.Background(), now, tt.id, "alice")
			require.Error(t, err)
			assert.Equal(t, tt.code, ido.CodeOf(err))
		})
	}
	assert.Equal(t, 0, f.project(t, open).RosterSize)
}

func TestRegister_ErrorCarriesScope(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	_, err := f.svc.Register(context.Background(), inWhitelist, id, "alice")
	var e *ido.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, id, e.ProjectID)
	assert.Equal(t, "alice", e.Account)
}

func TestRegister_BalanceGate_BelowThenAbove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))

	res, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, RegisterResult{Pending: true, QueryID: "q-1"}, res)
	assert.Equal(t, 0, f.project(t, id).RosterSize)

	q, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, resolver.Continuation{
		Kind:       resolver.ContinueWhitelist,
		ProjectID:  id,
		Account:    "alice",
		MinBalance: "100",
	}, q.Continuation)

	_, err = f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Success(stake(50))))
	assert.True(t, ido.HasCode(err, ido.ErrCodeInsufficientBalance))
	assert.Equal(t, 0, f.project(t, id).RosterSize)

	res, err = f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ = f.recorder.Last()
	assert.Equal(t, "q-2", q.ID)

	out, err := f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Success(stake(150))))
	require.NoError(t, err)
	assert.Equal(t, "Tier1", out.Tier)
	assert.Equal(t, 1, f.project(t, id).RosterSize)

	// A duplicated resolution admits nobody twice.
	_, err = f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Success(stake(150))))
	assert.True(t, ido.HasCode(err, ido.ErrCodeAlreadyRegistered))
	assert.Equal(t, 1, f.project(t, id).RosterSize)
}

func TestResolve_ExactlyAtThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))

	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ := f.recorder.Last()

	_, err = f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Success(stake(100))))
	require.NoError(t, err)
	assert.True(t, f.account(t, id, "alice").Whitelisted)
}

func TestResolve_FailedQueryHasNoEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))

	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ := f.recorder.Last()

	_, err = f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Failure("staking offline")))
	assert.True(t, ido.HasCode(err, ido.ErrCodeExternalCallFailed))
	assert.False(t, ido.IsFatal(err))
	assert.Equal(t, 0, f.project(t, id).RosterSize)
}

func TestResolve_UnexpectedResultCountIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))

	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ := f.recorder.Last()

	two := resolver.Resolve(q, resolver.Success(stake(150)), resolver.Success(stake(150)))
	_, err = f.svc.Resolve(ctx, inWhitelist, two)
	assert.True(t, ido.HasCode(err, ido.ErrCodeUnexpectedResultCount))
	assert.True(t, ido.IsFatal(err))
	assert.Equal(t, 0, f.project(t, id).RosterSize)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
}

func TestResolve_RevalidatesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))

	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ := f.recorder.Last()

	_, err = f.svc.Resolve(ctx, afterWhitelist, resolver.Resolve(q, resolver.Success(stake(500))))
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotInPeriod))
}

func TestResolve_SeedsLotteryTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, lottery(10, 5)))

	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	q, _ := f.recorder.Last()

	out, err := f.svc.Resolve(ctx, inWhitelist, resolver.Resolve(q, resolver.Success(stake(1000))))
	require.NoError(t, err)
	assert.Equal(t, "Tier2", out.Tier)
	assert.Equal(t, uint64(12), out.EligibleTickets)

	v := f.account(t, id, "alice")
	require.NotNil(t, v.Sale)
	assert.Equal(t, uint64(12), v.Sale.EligibleTickets)
}

func TestResolve_LocalDispatcher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var resolved []resolver.Resolution
	local := resolver.NewLocal(func(_ context.Context, r resolver.Resolution) {
		resolved = append(resolved, r)
	})
	local.SetStake("alice", stake(5000))
	f.svc.dispatcher = local

	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, sharedPool(10, 200)))
	_, err := f.svc.Register(ctx, inWhitelist, id, "alice")
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	out, err := f.svc.Resolve(ctx, inWhitelist, resolved[0])
	require.NoError(t, err)
	assert.Equal(t, "Tier3", out.Tier)
	assert.True(t, f.account(t, id, "alice").Whitelisted)
}

func TestGrantTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.TicketGate{}, lottery(10, 5)))
	f.register(t, id, "alice")

	eligible, err := f.svc.GrantTickets(ctx, id, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), eligible)

	eligible, err = f.svc.GrantTickets(ctx, id, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), eligible)

	_, err = f.svc.GrantTickets(ctx, id, "bob", 1)
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotWhitelisted))

	_, err = f.svc.GrantTickets(ctx, id, "alice", 0)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))
}

func TestGrantTickets_OverflowRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.lotteryInSales(t, lottery(10, 5), 3, "alice")
	_, err := f.svc.Commit(ctx, inSale, id, "alice", amt(30))
	require.NoError(t, err)

	_, err = f.svc.GrantTickets(ctx, id, "alice", math.MaxUint64-1)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))

	v := f.account(t, id, "alice")
	assert.Equal(t, uint64(3), v.Sale.EligibleTickets)
	assert.Equal(t, uint64(3), v.Sale.DepositedTickets)

	eligible, err := f.svc.GrantTickets(ctx, id, "alice", math.MaxUint64-3)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), eligible)

	_, err = f.svc.GrantTickets(ctx, id, "alice", 1)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))
	assert.Equal(t, uint64(math.MaxUint64), f.account(t, id, "alice").Sale.EligibleTickets)
}

func TestGrantTickets_SharedPoolRejected(t *testing.T) {
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))
	f.register(t, id, "alice")

	_, err := f.svc.GrantTickets(context.Background(), id, "alice", 1)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))
}

func TestRefreshTickets_KeepsDeposited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.TicketGate{}, lottery(10, 5)))
	f.register(t, id, "alice")
	_, err := f.svc.GrantTickets(ctx, id, "alice", 6)
	require.NoError(t, err)
	f.advance(t, id, afterWhitelist)

	_, err = f.svc.Commit(ctx, inSale, id, "alice", amt(30))
	require.NoError(t, err)

	res, err := f.svc.RefreshTickets(ctx, id, "alice")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	q, _ := f.recorder.Last()
	assert.Equal(t, resolver.ContinueTickets, q.Continuation.Kind)

	// Tier1 grants one ticket, but three are already deposited.
	out, err := f.svc.Resolve(ctx, inSale, resolver.Resolve(q, resolver.Success(stake(100))))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), out.EligibleTickets)

	_, err = f.svc.RefreshTickets(ctx, id, "bob")
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotWhitelisted))
}
