package tier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
)

const day = 24 * time.Hour

func tokens(n uint64) ido.Amount {
	return ido.Scaled(n, DefaultTokenDecimals)
}

func TestPoint(t *testing.T) {
	assert.Equal(t, "1000", Point(ido.NewAmount(1000), PointPeriod).String())
	assert.Equal(t, "500", Point(ido.NewAmount(1000), 180*day).String())
	assert.Equal(t, "2", Point(ido.NewAmount(1000), day).String())
	assert.True(t, Point(ido.NewAmount(1000), 0).IsZero())
}

func TestLockedDays(t *testing.T) {
	assert.Equal(t, uint32(0), LockedDays(23*time.Hour))
	assert.Equal(t, uint32(30), LockedDays(30*day+time.Hour))
	assert.Equal(t, uint32(0), LockedDays(-time.Hour))
}

func TestDefaultConfig_TierBoundaries(t *testing.T) {
	e, err := New(DefaultConfig(DefaultTokenDecimals))
	require.NoError(t, err)

	tests := []struct {
		point uint64
		want  Tier
	}{
		{0, Tier0},
		{99, Tier0},
		{100, Tier1},
		{999, Tier1},
		{1000, Tier2},
		{5000, Tier3},
		{9999, Tier3},
		{10000, Tier4},
		{1_000_000, Tier4},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, e.TierOf(tokens(tt.point)))
		})
	}
}

func TestEvaluate_DefaultTickets(t *testing.T) {
	e, err := New(DefaultConfig(DefaultTokenDecimals))
	require.NoError(t, err)

	info := e.Evaluate(Stake{LockedAmount: tokens(2000), LockedDuration: PointPeriod})
	assert.Equal(t, Tier2, info.Tier)
	assert.Equal(t, tokens(2000).String(), info.Point.String())
	assert.Equal(t, uint64(12), info.Tickets)
	assert.Equal(t, uint64(0), info.Allocations)

	info = e.Evaluate(Stake{Point: tokens(20000), LockedDuration: 10 * day})
	assert.Equal(t, Tier4, info.Tier)
	assert.Equal(t, uint64(100), info.Tickets)
	assert.Equal(t, uint64(1), info.Allocations)
}

func TestEvaluate_Staircase(t *testing.T) {
	e, err := New(Config{Levels: []Level{
		{Tier: Tier0, MinPoint: "0"},
		{Tier: Tier1, MinPoint: "10", Tickets: []Step{{Days: 7, Count: 1}, {Days: 30, Count: 3}, {Days: 90, Count: 6}}},
	}})
	require.NoError(t, err)

	tests := []struct {
		days int
		want uint64
	}{
		{6, 0},
		{7, 1},
		{29, 1},
		{30, 3},
		{365, 6},
	}
	for _, tt := range tests {
		info := e.Evaluate(Stake{Point: ido.NewAmount(50), LockedDuration: time.Duration(tt.days) * day})
		assert.Equal(t, tt.want, info.Tickets, "days=%d", tt.days)
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))

	_, err = New(Config{Levels: []Level{{Tier: Tier1, MinPoint: "1"}, {Tier: Tier1, MinPoint: "2"}}})
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))

	_, err = New(Config{Levels: []Level{{Tier: Tier1, MinPoint: "-1"}}})
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))
}
