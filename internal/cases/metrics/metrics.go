package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the case state machine.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	GuardFailures *prometheus.CounterVec
}

// New creates and registers the state machine metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_case_transitions_total",
			Help: "Successful state machine operations, by operation",
		}, []string{"operation"}),
		GuardFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_case_guard_failures_total",
			Help: "Operations rejected by a guard, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

// RecordTransition counts one successful operation.
func (m *Metrics) RecordTransition(op string) {
	m.Transitions.WithLabelValues(op).Inc()
}

// RecordGuardFailure counts one rejected operation.
func (m *Metrics) RecordGuardFailure(op, code string) {
	m.GuardFailures.WithLabelValues(op, code).Inc()
}
