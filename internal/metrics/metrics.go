// Package metrics defines the Prometheus collectors for the coordinator.
// A nil *Metrics is valid and records nothing, so tests can omit it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

const namespace = "barcrawl"

// Routing failure reasons.
const (
	ReasonDropped  = "dropped"
	ReasonNotFound = "not_found"
	ReasonConflict = "conflict"
	ReasonError    = "error"
)

// Metrics holds every collector the service records to.
type Metrics struct {
	registry *prometheus.Registry

	QueueOps          *prometheus.CounterVec
	GroupTransitions  *prometheus.CounterVec
	RoutingDispatched prometheus.Counter
	RoutingCompleted  prometheus.Counter
	RoutingFailures   *prometheus.CounterVec
	RoutingScore      prometheus.Histogram
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueueOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_operations_total",
			Help:      "Stop queue operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		GroupTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_transitions_total",
			Help:      "Group status changes by target status.",
		}, []string{"to"}),
		RoutingDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_dispatched_total",
			Help:      "Routing tasks accepted by the dispatcher.",
		}),
		RoutingCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_circuits_completed_total",
			Help:      "Groups that had no unvisited stop left.",
		}),
		RoutingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_failures_total",
			Help:      "Routing tasks that failed, by reason.",
		}, []string{"reason"}),
		RoutingScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_score_minutes",
			Help:      "Score of the chosen next stop in minutes.",
			Buckets:   []float64{5, 10, 15, 20, 30, 45, 60, 90},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// QueueOp counts one stop queue operation.
func (m *Metrics) QueueOp(op, outcome string) {
	if m == nil {
		return
	}
	m.QueueOps.WithLabelValues(op, outcome).Inc()
}

// Transition counts a group moving to status.
func (m *Metrics) Transition(to domain.GroupStatus) {
	if m == nil {
		return
	}
	m.GroupTransitions.WithLabelValues(string(to)).Inc()
}

// Dispatched counts a routing task accepted for background processing.
func (m *Metrics) Dispatched() {
	if m == nil {
		return
	}
	m.RoutingDispatched.Inc()
}

// Routed records the score of a successful routing decision.
func (m *Metrics) Routed(score float64) {
	if m == nil {
		return
	}
	m.RoutingScore.Observe(score)
}

// CircuitCompleted counts a group that has visited every stop.
func (m *Metrics) CircuitCompleted() {
	if m == nil {
		return
	}
	m.RoutingCompleted.Inc()
}

// RoutingFailed counts a failed routing task.
func (m *Metrics) RoutingFailed(reason string) {
	if m == nil {
		return
	}
	m.RoutingFailures.WithLabelValues(reason).Inc()
}
