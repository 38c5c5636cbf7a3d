package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event log.
type Metrics struct {
	EventsAppended *prometheus.CounterVec
}

// New creates and registers the event log metrics.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_events_appended_total",
			Help: "Total case events appended to the log, by event type",
		}, []string{"event_type"}),
	}
}

// RecordAppend counts one appended event.
func (m *Metrics) RecordAppend(eventType string) {
	m.EventsAppended.WithLabelValues(eventType).Inc()
}
