package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/metrics"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/tier"
)

// ErrStopped is returned by Submit once the engine has been stopped.
var ErrStopped = errors.New("engine stopped")

// Reply is what Submit returns for an executed operation.
type Reply struct {
	RequestID string
	Seq       int64
	EntryID   string
	Result    any
	Err       error
}

// Engine is the single-writer operation loop.
//
// Thread-safety model:
//   - Submit, SubmitAs, Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Service: safe for reads from any goroutine
type Engine struct {
	store    store.Store
	service  *allocation.Service
	clock    *Clock
	queue    *jobQueue
	requests RequestIDGenerator
	queries  *queryIDs
	now      func() time.Time
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	dispatcher resolver.Dispatcher
	settlement allocation.Settlement
	tiers      *tier.Engine
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets where staking queries go.
func WithDispatcher(d resolver.Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithSettlement sets the settlement collaborator.
func WithSettlement(s allocation.Settlement) Option {
	return func(e *Engine) { e.settlement = s }
}

// WithTiers sets the tier engine.
func WithTiers(t *tier.Engine) Option {
	return func(e *Engine) { e.tiers = t }
}

// WithRequestIDs sets the request id generator. Default: UUIDv7.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) { e.requests = g }
}

// WithNow sets the wall clock used as the effective time of operations.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over st. The logical clock resumes at the store's
// journal head.
func New(ctx context.Context, st store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:      st,
		queue:      newJobQueue(),
		requests:   UUIDv7Generator{},
		queries:    &queryIDs{},
		now:        time.Now,
		log:        logrus.StandardLogger(),
		dispatcher: resolver.NewRecorder(),
		settlement: allocation.NewLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	head, err := st.JournalHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal head: %w", err)
	}
	e.clock = NewClockAt(head)
	e.metrics.SetJournalSeq(head)

	svcOpts := []allocation.Option{
		allocation.WithDispatcher(instrumentedDispatcher{next: e.dispatcher, metrics: e.metrics}),
		allocation.WithSettlement(instrumentedSettlement{next: e.settlement, metrics: e.metrics}),
		allocation.WithIDGenerator(e.queries),
		allocation.WithLogger(e.log),
	}
	if e.tiers != nil {
		svcOpts = append(svcOpts, allocation.WithTiers(e.tiers))
	}
	e.service, err = allocation.New(st, svcOpts...)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Service returns the allocation service. Use it for reads only; writes
// must go through Submit so they are serialised and journaled.
func (e *Engine) Service() *allocation.Service {
	return e.service
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Submit queues op under a new request id and waits for its outcome.
// The returned error is the operation's error; the Reply carries it too.
func (e *Engine) Submit(ctx context.Context, op Operation) (Reply, error) {
	return e.SubmitAs(ctx, e.requests.Generate(), op)
}

// SubmitAs is Submit with a caller-chosen request id.
func (e *Engine) SubmitAs(ctx context.Context, requestID string, op Operation) (Reply, error) {
	j := &job{requestID: requestID, op: op, reply: make(chan Reply, 1)}
	if !e.enqueue(j) {
		return Reply{RequestID: requestID, Err: ErrStopped}, ErrStopped
	}

	select {
	case r := <-j.reply:
		return r, r.Err
	case <-ctx.Done():
		// The job still runs; only the wait is abandoned.
		return Reply{RequestID: requestID, Err: ctx.Err()}, ctx.Err()
	}
}

// Enqueue queues op without waiting. It returns the request id, or false
// if the engine has been stopped.
func (e *Engine) Enqueue(op Operation) (string, bool) {
	requestID := e.requests.Generate()
	return requestID, e.enqueueAs(requestID, op)
}

func (e *Engine) enqueueAs(requestID string, op Operation) bool {
	return e.enqueue(&job{requestID: requestID, op: op})
}

func (e *Engine) enqueue(j *job) bool {
	ok := e.queue.Enqueue(j)
	e.metrics.SetQueueDepth(e.queue.Len())
	return ok
}

type effectiveTimeKey struct{}

// EffectiveTime returns the effective time of the operation running under
// ctx, if any.
func EffectiveTime(ctx context.Context) (time.Time, bool) {
	at, ok := ctx.Value(effectiveTimeKey{}).(time.Time)
	return at, ok
}

// ResolverSink returns a resolver.Sink that enqueues resolutions as
// Resolve operations. The resolution runs under the request id of the
// operation that dispatched the query. A resolution delivered while that
// operation is still running (an in-process resolver) also inherits its
// effective time.
func (e *Engine) ResolverSink() resolver.Sink {
	return func(ctx context.Context, res resolver.Resolution) {
		requestID := RequestOfQuery(res.QueryID)
		if requestID == "" {
			requestID = e.requests.Generate()
		}
		j := &job{requestID: requestID, op: Resolve{Resolution: res}}
		if at, ok := EffectiveTime(ctx); ok {
			j.at = at
		}
		if !e.enqueue(j) {
			e.log.WithField("query_id", res.QueryID).Warn("resolution dropped: engine stopped")
		}
	}
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Stop is called and the queue has drained. Jobs still queued when ctx is
// cancelled are answered with ErrStopped.
//
// Operation errors are journaled and returned to the submitter; they never
// stop the loop. There are no retries.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting")

	for {
		if err := ctx.Err(); err != nil {
			e.log.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.rejectPending()
			return err
		}

		if j, ok := e.queue.TryDequeue(); ok {
			e.metrics.SetQueueDepth(e.queue.Len())
			r := e.process(ctx, j)
			if j.reply != nil {
				j.reply <- r
			}
			continue
		}

		select {
		case <-ctx.Done():

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.log.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// rejectPending answers every job left in the closed queue with ErrStopped.
func (e *Engine) rejectPending() {
	pending := e.queue.Drain()
	for _, j := range pending {
		if j.reply != nil {
			j.reply <- Reply{RequestID: j.requestID, Err: ErrStopped}
		}
	}
	if len(pending) > 0 {
		e.log.WithField("jobs", len(pending)).Warn("queued operations rejected")
	}
	e.metrics.SetQueueDepth(0)
}

// Stop rejects new operations. Run returns once the queue is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process executes one job. Called only from the Run goroutine.
func (e *Engine) process(ctx context.Context, j *job) Reply {
	at := j.at
	if at.IsZero() {
		at = e.now()
	}
	entry, result, err := e.execute(ctx, j.requestID, j.op, at)
	return Reply{RequestID: j.requestID, Seq: entry.Seq, EntryID: entry.ID, Result: result, Err: err}
}

// execute runs op at the next seq and journals it.
func (e *Engine) execute(ctx context.Context, requestID string, op Operation, at time.Time) (journal.Entry, any, error) {
	start := time.Now()
	kind := op.Kind()

	entry, err := journal.New(e.clock.Current()+1, requestID, kind, op, at)
	if err != nil {
		e.log.WithError(err).WithField("kind", kind).Error("operation rejected before execution")
		return journal.Entry{}, nil, ido.NewInvalidArgument("args", err.Error())
	}
	e.clock.Next()

	e.queries.begin(requestID)
	opCtx := context.WithValue(ctx, effectiveTimeKey{}, entry.At)
	result, opErr := op.Apply(opCtx, Env{Service: e.service, Now: entry.At})
	if opErr != nil {
		result = nil
	}

	entry.ProjectID, entry.Account = op.Target()
	if c, ok := result.(Created); ok {
		entry.ProjectID = c.ProjectID
	}
	if err := entry.Complete(result, opErr); err != nil {
		e.log.WithError(err).WithField("seq", entry.Seq).Error("result not journaled")
		_ = entry.Complete(nil, err)
	}
	if err := e.store.AppendJournal(ctx, entry); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"seq":  entry.Seq,
			"kind": kind,
		}).Error("journal append failed")
	}
	e.metrics.SetJournalSeq(entry.Seq)
	e.metrics.RecordOperation(kind, entry.Outcome, entry.ErrorCode, time.Since(start))

	fields := logrus.Fields{
		"seq":        entry.Seq,
		"kind":       kind,
		"request_id": requestID,
		"outcome":    entry.Outcome,
	}
	if opErr != nil {
		fields["code"] = entry.ErrorCode
		e.log.WithFields(fields).WithError(opErr).Debug("operation failed")
	} else {
		e.log.WithFields(fields).Debug("operation applied")
	}
	return entry, result, opErr
}

// instrumentedDispatcher counts dispatched queries.
type instrumentedDispatcher struct {
	next    resolver.Dispatcher
	metrics *metrics.Metrics
}

func (d instrumentedDispatcher) Dispatch(ctx context.Context, q resolver.Query) error {
	err := d.next.Dispatch(ctx, q)
	d.metrics.RecordQuery(string(q.Continuation.Kind), err)
	return err
}

// instrumentedSettlement counts transfers.
type instrumentedSettlement struct {
	next    allocation.Settlement
	metrics *metrics.Metrics
}

func (s instrumentedSettlement) Transfer(ctx context.Context, t allocation.Transfer) error {
	err := s.next.Transfer(ctx, t)
	s.metrics.RecordTransfer(string(t.Asset), err)
	return err
}
