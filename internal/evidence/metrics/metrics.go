package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the evidence ledger.
type Metrics struct {
	BlocksAppended *prometheus.CounterVec
	Verifications  *prometheus.CounterVec
}

// New creates and registers the ledger metrics.
func New() *Metrics {
	return &Metrics{
		BlocksAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_evidence_blocks_appended_total",
			Help: "Evidence blocks appended to hash chains, by evidence type",
		}, []string{"evidence_type"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_chain_verifications_total",
			Help: "Chain and block verification passes, by scope and result",
		}, []string{"scope", "result"}),
	}
}

// RecordAppend counts one appended block.
func (m *Metrics) RecordAppend(evidenceType string) {
	m.BlocksAppended.WithLabelValues(evidenceType).Inc()
}

// RecordVerification counts one verification pass.
func (m *Metrics) RecordVerification(scope string, valid bool) {
	result := "valid"
	if !valid {
		result = "tampered"
	}
	m.Verifications.WithLabelValues(scope, result).Inc()
}
