package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ContestMetrics tracks contest lifecycle activity for operators.
type ContestMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	feeLedger   prometheus.Gauge
	escrowPaid  prometheus.Counter
}

var (
	contestOnce     sync.Once
	contestRegistry *ContestMetrics
)

// Contest returns the process-wide contest metrics registry.
func Contest() *ContestMetrics {
	contestOnce.Do(func() {
		contestRegistry = &ContestMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "contest_transitions_total",
				Help: "Count of applied contest state transitions by operation.",
			}, []string{"op"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "contest_rejections_total",
				Help: "Count of rejected contest operations by operation.",
			}, []string{"op"}),
			feeLedger: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "contest_fee_ledger",
				Help: "Collected, unwithdrawn protocol fee in mint base units.",
			}),
			escrowPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "contest_claims_paid_total",
				Help: "Count of winner claims paid from escrow.",
			}),
		}
		prometheus.MustRegister(
			contestRegistry.transitions,
			contestRegistry.rejections,
			contestRegistry.feeLedger,
			contestRegistry.escrowPaid,
		)
	})
	return contestRegistry
}

// Applied records a successful state transition.
func (m *ContestMetrics) Applied(op string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op).Inc()
}

// Rejected records a rejected operation.
func (m *ContestMetrics) Rejected(op string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op).Inc()
}

// SetFeeLedger records the current fee ledger balance.
func (m *ContestMetrics) SetFeeLedger(amount float64) {
	if m == nil {
		return
	}
	m.feeLedger.Set(amount)
}

// ClaimPaid records a paid winner claim.
func (m *ContestMetrics) ClaimPaid() {
	if m == nil {
		return
	}
	m.escrowPaid.Inc()
}
