package resolver

import (
	"context"
	"sync"

	"github.com/roach88/idocore/internal/tier"
)

// Dispatcher hands a Query to the staking service.
// Implementations must not block on the answer.
type Dispatcher interface {
	Dispatch(ctx context.Context, q Query) error
}

// Sink receives resolutions produced in-process. It must not block.
type Sink func(ctx context.Context, r Resolution)

// Recorder keeps every dispatched query and answers none of them.
// Tests and replay resolve the recorded queries explicitly.
type Recorder struct {
	mu      sync.Mutex
	queries []Query
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Dispatch records q.
func (r *Recorder) Dispatch(_ context.Context, q Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return nil
}

// Queries returns a copy of everything dispatched so far.
func (r *Recorder) Queries() []Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Query, len(r.queries))
	copy(out, r.queries)
	return out
}

// Last returns the most recent query.
func (r *Recorder) Last() (Query, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return Query{}, false
	}
	return r.queries[len(r.queries)-1], true
}

// Outbox holds dispatched queries until an external poller takes them.
// The HTTP API exposes it so an out-of-process staking adapter can fetch
// queries and post resolutions back.
type Outbox struct {
	mu      sync.Mutex
	pending []Query
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Dispatch queues q for pickup.
func (o *Outbox) Dispatch(_ context.Context, q Query) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, q)
	return nil
}

// Take removes and returns up to limit pending queries, oldest first.
// A non-positive limit takes everything.
func (o *Outbox) Take(limit int) []Query {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Query, n)
	copy(out, o.pending[:n])
	o.pending = append(o.pending[:0], o.pending[n:]...)
	return out
}

// Len returns the number of pending queries.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Local answers queries from an in-process staking ledger. Resolutions are
// handed to the sink synchronously, so the sink must only enqueue them.
type Local struct {
	mu     sync.RWMutex
	stakes map[string]tier.Stake
	failed map[string]string
	sink   Sink
}

// NewLocal creates a Local resolver delivering to sink.
func NewLocal(sink Sink) *Local {
	return &Local{
		stakes: make(map[string]tier.Stake),
		failed: make(map[string]string),
		sink:   sink,
	}
}

// SetSink replaces the sink. Used when the sink is built after the resolver.
func (l *Local) SetSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// SetStake records an account's staking position.
func (l *Local) SetStake(account string, s tier.Stake) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stakes[account] = s
	delete(l.failed, account)
}

// Fail makes every query for account resolve with a failed result.
func (l *Local) Fail(account, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[account] = reason
}

// Answer builds the resolution Local would deliver for q.
// Unknown accounts have an empty position.
func (l *Local) Answer(q Query) Resolution {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if reason, ok := l.failed[q.Account]; ok {
		return Resolve(q, Failure(reason))
	}
	return Resolve(q, Success(l.stakes[q.Account]))
}

// Dispatch answers q and delivers the resolution to the sink.
func (l *Local) Dispatch(ctx context.Context, q Query) error {
	res := l.Answer(q)
	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()
	if sink != nil {
		sink(ctx, res)
	}
	return nil
}
