// Package metrics provides Prometheus metrics for the allocation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "idocore"

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
	JournalSeq        prometheus.Gauge

	// Collaborator metrics
	QueriesDispatched *prometheus.CounterVec
	Transfers         *prometheus.CounterVec

	// Scheduler metrics
	ScheduledAdvances *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates Metrics registered on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of operations executed by kind and outcome",
		}, []string{"kind", "outcome", "code"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Operation execution time in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Operations waiting for the engine loop",
		}),
		JournalSeq: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "journal_seq",
			Help:      "Sequence number of the last journaled operation",
		}),

		QueriesDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "queries_dispatched_total",
			Help:      "Staking queries handed to the dispatcher by continuation kind",
		}, []string{"kind", "status"}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "transfers_total",
			Help:      "Settlement transfers by asset and status",
		}, []string{"asset", "status"}),

		ScheduledAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "advances_total",
			Help:      "Phase advances attempted by the scheduler by target status and outcome",
		}, []string{"to", "outcome"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "status"}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation records one executed operation.
func (m *Metrics) RecordOperation(kind, outcome, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(kind, outcome, code).Inc()
	m.OperationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetQueueDepth records the engine queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// SetJournalSeq records the journal head.
func (m *Metrics) SetJournalSeq(seq int64) {
	if m == nil {
		return
	}
	m.JournalSeq.Set(float64(seq))
}

// RecordQuery records a dispatched staking query.
func (m *Metrics) RecordQuery(kind string, err error) {
	if m == nil {
		return
	}
	m.QueriesDispatched.WithLabelValues(kind, status(err)).Inc()
}

// RecordTransfer records a settlement transfer.
func (m *Metrics) RecordTransfer(asset string, err error) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(asset, status(err)).Inc()
}

// RecordAdvance records a scheduler advance attempt.
func (m *Metrics) RecordAdvance(to string, err error) {
	if m == nil {
		return
	}
	m.ScheduledAdvances.WithLabelValues(to, status(err)).Inc()
}

// RecordHTTP records a served HTTP request.
func (m *Metrics) RecordHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
