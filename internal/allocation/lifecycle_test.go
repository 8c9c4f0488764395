package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
)

func TestAdvance_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))
	assert.Equal(t, "Preparation", f.project(t, id).Status)

	r := f.advance(t, id, inWhitelist)
	assert.Equal(t, "Preparation", r.From)
	assert.Equal(t, "Whitelist", r.To)

	f.advance(t, id, afterWhitelist)
	f.advance(t, id, afterSale)
	assert.Equal(t, "Distribution", f.project(t, id).Status)

	_, err := f.svc.Advance(context.Background(), afterSale, id, nil)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidPhaseTransition))
}

func TestAdvance_TimeGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	_, err := f.svc.Advance(ctx, beforeWhitelist, id, nil)
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotInPeriod))
	_, err = f.svc.Advance(ctx, afterWhitelist, id, nil)
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotInPeriod))

	f.advance(t, id, inWhitelist)
	f.advance(t, id, afterWhitelist)

	// Sales end is inclusive for commits, so Distribution needs now > saleEnd.
	saleEnd := base.Add(4 * time.Hour)
	_, err = f.svc.Advance(ctx, saleEnd, id, nil)
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotInPeriod))
	assert.Equal(t, "Sales", f.project(t, id).Status)
}

func TestAdvance_RejectsSkipsAndRegressions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	for _, target := range []ido.Status{ido.StatusPreparation, ido.StatusWhitelist, ido.StatusDistribution} {
		target := target
		_, err := f.svc.Advance(ctx, afterSale, id, &target)
		assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidPhaseTransition), "target %s", target)
	}
	assert.Equal(t, "Whitelist", f.project(t, id).Status)

	sales := ido.StatusSales
	_, err := f.svc.Advance(ctx, afterWhitelist, id, &sales)
	require.NoError(t, err)
}

func TestAdvance_WhitelistToSalesBeforeEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.TicketGate{}, lottery(10, 5)))
	f.register(t, id, "alice")

	_, err := f.svc.Advance(ctx, inWhitelist, id, nil)
	assert.True(t, ido.HasCode(err, ido.ErrCodeNotInPeriod))
	assert.Equal(t, "Whitelist", f.project(t, id).Status)

	r := f.advance(t, id, afterWhitelist)
	assert.Equal(t, "Sales", r.To)
	assert.Equal(t, uint64(0), r.Winners)
}

func TestAdvance_WinnerSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.lotteryInSales(t, lottery(10, 5), 6, "alice", "bob")

	_, err := f.svc.Commit(ctx, inSale, id, "alice", amt(40))
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, inSale, id, "bob", amt(30))
	require.NoError(t, err)

	r := f.advance(t, id, afterSale)
	assert.Equal(t, uint64(5), r.Winners)

	assert.Equal(t, []uint64{0, 1, 2, 3}, f.account(t, id, "alice").Sale.WinningTicketIDs)
	assert.Equal(t, []uint64{4}, f.account(t, id, "bob").Sale.WinningTicketIDs)
}

func TestAdvance_FewerTicketsThanSlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.lotteryInSales(t, lottery(10, 10), 6, "alice")

	_, err := f.svc.Commit(ctx, inSale, id, "alice", amt(30))
	require.NoError(t, err)

	r := f.advance(t, id, afterSale)
	assert.Equal(t, uint64(3), r.Winners)
	assert.Equal(t, []uint64{0, 1, 2}, f.account(t, id, "alice").Sale.WinningTicketIDs)
}
