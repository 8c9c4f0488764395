package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
)

type commitArgs struct {
	ProjectID int64  `json:"project_id"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
}

var at = time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)

func TestNew_DeterministicID(t *testing.T) {
	args := commitArgs{ProjectID: 1, Account: "alice", Amount: "15"}

	a, err := New(4, "req-1", "commit", args, at)
	require.NoError(t, err)
	b, err := New(4, "req-1", "commit", args, at.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "wall time is not part of the id")
	assert.Len(t, a.ID, 64)
	assert.Equal(t, `{"account":"alice","amount":"15","project_id":1}`, string(a.Args))

	c, err := New(5, "req-1", "commit", args, at)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestComplete(t *testing.T) {
	e, err := New(1, "req-1", "commit", commitArgs{ProjectID: 1}, at)
	require.NoError(t, err)

	require.NoError(t, e.Complete(map[string]any{"applied": "15"}, nil))
	assert.Equal(t, OutcomeOK, e.Outcome)
	assert.Equal(t, `{"applied":"15"}`, string(e.Result))
	assert.Equal(t, "1 commit ok", e.Summary())

	require.NoError(t, e.Complete(nil, ido.NewNotInPeriod("closed")))
	assert.Equal(t, OutcomeError, e.Outcome)
	assert.Equal(t, "NOT_IN_PERIOD", e.ErrorCode)
	assert.Nil(t, e.Result)
	assert.Equal(t, "1 commit error NOT_IN_PERIOD", e.Summary())
}

func TestFilter_Match(t *testing.T) {
	e := Entry{Seq: 5, RequestID: "r", ProjectID: 2}
	assert.True(t, Filter{}.Match(e))
	assert.True(t, Filter{RequestID: "r", ProjectID: 2, AfterSeq: 4}.Match(e))
	assert.False(t, Filter{RequestID: "x"}.Match(e))
	assert.False(t, Filter{ProjectID: 3}.Match(e))
	assert.False(t, Filter{AfterSeq: 5}.Match(e))
}
