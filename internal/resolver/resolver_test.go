package resolver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/tier"
)

func testQuery() Query {
	return Query{
		ID:      "q-1",
		Account: "alice",
		Continuation: Continuation{
			Kind:       ContinueWhitelist,
			ProjectID:  3,
			Account:    "alice",
			MinBalance: "500",
		},
	}
}

func TestDecodeStake_Success(t *testing.T) {
	stake := tier.Stake{LockedAmount: ido.NewAmount(900), LockedDuration: 48 * time.Hour, Point: ido.NewAmount(600)}
	got, err := DecodeStake(Resolve(testQuery(), Success(stake)))
	require.NoError(t, err)
	assert.Equal(t, "900", got.LockedAmount.String())
	assert.Equal(t, 48*time.Hour, got.LockedDuration)
	assert.Equal(t, "600", got.Point.String())
}

func TestDecodeStake_ResultCount(t *testing.T) {
	for _, n := range []int{0, 2} {
		results := make([]Result, n)
		for i := range results {
			results[i] = Success(tier.Stake{})
		}
		_, err := DecodeStake(Resolve(testQuery(), results...))
		require.Error(t, err)
		assert.True(t, ido.HasCode(err, ido.ErrCodeUnexpectedResultCount))
		assert.True(t, ido.IsFatal(err))
	}
}

func TestDecodeStake_Failure(t *testing.T) {
	_, err := DecodeStake(Resolve(testQuery(), Failure("timeout")))
	assert.True(t, ido.HasCode(err, ido.ErrCodeExternalCallFailed))
	assert.Contains(t, err.Error(), "timeout")

	bad := Result{Success: true, Payload: json.RawMessage(`{"locked_amount":"-4"}`)}
	_, err = DecodeStake(Resolve(testQuery(), bad))
	assert.True(t, ido.HasCode(err, ido.ErrCodeExternalCallFailed))
}

func TestContinuation_Validate(t *testing.T) {
	assert.NoError(t, testQuery().Continuation.Validate())
	assert.Error(t, Continuation{Kind: "vote", ProjectID: 1, Account: "a"}.Validate())
	assert.Error(t, Continuation{Kind: ContinueTickets, Account: "a"}.Validate())
	assert.Error(t, Continuation{Kind: ContinueTickets, ProjectID: 1}.Validate())
}

func TestResolution_JSONShape(t *testing.T) {
	res := Resolve(testQuery(), Failure("down"))
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"query_id": "q-1",
		"continuation": {"kind": "whitelist", "project_id": 3, "account": "alice", "min_balance": "500"},
		"results": [{"success": false, "error": "down"}]
	}`, string(data))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	require.NoError(t, r.Dispatch(context.Background(), testQuery()))
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "q-1", last.ID)
	assert.Len(t, r.Queries(), 1)
}

func TestOutbox_Take(t *testing.T) {
	o := NewOutbox()
	for _, id := range []string{"a", "b", "c"} {
		q := testQuery()
		q.ID = id
		require.NoError(t, o.Dispatch(context.Background(), q))
	}

	first := o.Take(2)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, 1, o.Len())

	rest := o.Take(0)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)
	assert.Equal(t, 0, o.Len())
}

func TestLocal_DeliversToSink(t *testing.T) {
	var got []Resolution
	l := NewLocal(func(_ context.Context, r Resolution) { got = append(got, r) })
	l.SetStake("alice", tier.Stake{LockedAmount: ido.NewAmount(1000), LockedDuration: tier.PointPeriod})

	require.NoError(t, l.Dispatch(context.Background(), testQuery()))
	require.Len(t, got, 1)
	stake, err := DecodeStake(got[0])
	require.NoError(t, err)
	assert.Equal(t, "1000", stake.LockedAmount.String())

	l.Fail("alice", "offline")
	require.NoError(t, l.Dispatch(context.Background(), testQuery()))
	_, err = DecodeStake(got[1])
	assert.True(t, ido.HasCode(err, ido.ErrCodeExternalCallFailed))
}
