// Package scheduler advances projects whose phase windows have opened.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/metrics"
	"github.com/roach88/idocore/internal/store"
)

// DefaultSpec runs a sweep every 30 seconds.
const DefaultSpec = "*/30 * * * * *"

// Submitter is the engine surface the scheduler needs.
type Submitter interface {
	Submit(ctx context.Context, op engine.Operation) (engine.Reply, error)
}

// Advanced reports one advance attempted by a sweep.
type Advanced struct {
	ProjectID ido.ProjectID
	From      ido.Status
	To        ido.Status
	Err       error
}

// Scheduler periodically submits Advance for every project whose next
// transition is allowed by its time windows.
type Scheduler struct {
	store   store.Store
	submit  Submitter
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow sets the clock used to evaluate windows.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithMetrics records every attempted advance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler reading projects from st and submitting to sub.
func New(st store.Store, sub Submitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  st,
		submit: sub,
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "scheduler")
	return s
}

// due returns the projects that can advance at now.
func (s *Scheduler) due(ctx context.Context, now time.Time) ([]Advanced, error) {
	var out []Advanced
	err := s.store.View(ctx, func(tx store.ReadTx) error {
		projects, err := tx.ListProjects(ctx, store.ProjectFilter{})
		if err != nil {
			return err
		}
		for _, p := range projects {
			if next, ok := ido.ReadyToAdvance(p, now); ok {
				out = append(out, Advanced{ProjectID: p.ID, From: p.Status, To: next})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// Sweep advances every due project by one phase. A rejected advance is
// reported in its Advanced entry and does not stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context) ([]Advanced, error) {
	due, err := s.due(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for i := range due {
		a := &due[i]
		_, a.Err = s.submit.Submit(ctx, engine.Advance{ProjectID: a.ProjectID, To: a.To.String()})
		s.metrics.RecordAdvance(a.To.String(), a.Err)

		log := s.log.WithFields(logrus.Fields{
			"project_id": a.ProjectID,
			"from":       a.From.String(),
			"to":         a.To.String(),
		})
		if a.Err != nil {
			log.WithError(a.Err).Warn("scheduled advance rejected")
			continue
		}
		log.Info("project advanced")
	}
	return due, nil
}

// Start runs Sweep on the cron spec (with a seconds field) until Stop.
// Overlapping sweeps are skipped.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.cron = c
	c.Start()
	s.log.WithField("spec", spec).Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}
