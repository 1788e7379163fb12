// Package observability holds liftlog's logging and Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "liftlog"

// Metrics holds the counters recorded by the consistency core.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation.
type Metrics struct {
	eventsDispatched *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	cascadeDeletes   *prometheus.CounterVec
	recordsDeleted   *prometheus.CounterVec
	imports          *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	queryRefreshes   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Number of domain events dispatched, by kind.",
		}, []string{"kind"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_failures_total",
			Help:      "Number of handler errors and panics, by event kind.",
		}, []string{"kind"}),
		cascadeDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "deletes_total",
			Help:      "Number of delete operations, by root type, mode and outcome.",
		}, []string{"root", "mode", "outcome"}),
		recordsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "records_deleted_total",
			Help:      "Number of records removed by committed deletes, by entity type.",
		}, []string{"entity"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "imports_total",
			Help:      "Number of snapshot imports, by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "conflicts_detected_total",
			Help:      "Number of field conflicts detected, by severity.",
		}, []string{"severity"}),
		queryRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactive",
			Name:      "query_refreshes_total",
			Help:      "Number of subscription re-queries, by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.eventsDispatched, m.handlerFailures, m.cascadeDeletes, m.recordsDeleted,
		m.imports, m.conflicts, m.queryRefreshes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EventDispatched counts one dispatch of an event kind.
func (m *Metrics) EventDispatched(kind string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(kind).Inc()
}

// HandlerFailed counts one failed handler invocation.
func (m *Metrics) HandlerFailed(kind string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(kind).Inc()
}

// CascadeDelete counts one delete operation.
func (m *Metrics) CascadeDelete(root, mode, outcome string) {
	if m == nil {
		return
	}
	m.cascadeDeletes.WithLabelValues(root, mode, outcome).Inc()
}

// RecordsDeleted adds n removed records of an entity type.
func (m *Metrics) RecordsDeleted(entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDeleted.WithLabelValues(entity).Add(float64(n))
}

// Import counts one import attempt.
func (m *Metrics) Import(outcome string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(outcome).Inc()
}

// ConflictsDetected adds n conflicts of a severity.
func (m *Metrics) ConflictsDetected(severity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflicts.WithLabelValues(severity).Add(float64(n))
}

// QueryRefreshed counts one subscription re-query.
func (m *Metrics) QueryRefreshed(outcome string) {
	if m == nil {
		return
	}
	m.queryRefreshes.WithLabelValues(outcome).Inc()
}
