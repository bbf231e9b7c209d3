package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "merchant_settlement"

// Settlement outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeFailed   = "failed"
)

// SettlementMetrics records settlement, withdrawal and reconciliation activity.
// All methods are safe to call on a nil receiver.
type SettlementMetrics struct {
	settlements          *prometheus.CounterVec
	duration             prometheus.Histogram
	numberCollisions     prometheus.Counter
	profitCreditFailures prometheus.Counter
	withdrawals          *prometheus.CounterVec
	reconcileRuns        *prometheus.CounterVec
	reconciledItems      *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Duration of order settlement in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		numberCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_number_collisions_total",
			Help:      "Invoice inserts rejected because the number was already taken.",
		}),
		profitCreditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profit_credit_failures_total",
			Help:      "Profit credits that failed and were left for reconciliation.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_transitions_total",
			Help:      "Withdrawal requests entering each status.",
		}, []string{"status"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_runs_total",
			Help:      "Reconciliation passes by result.",
		}, []string{"result"}),
		reconciledItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_items_total",
			Help:      "Items repaired by the reconciler.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.settlements,
		m.duration,
		m.numberCollisions,
		m.profitCreditFailures,
		m.withdrawals,
		m.reconcileRuns,
		m.reconciledItems,
	)
	return m
}

// ObserveSettlement records one settlement call.
func (m *SettlementMetrics) ObserveSettlement(outcome string, d time.Duration) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *SettlementMetrics) IncNumberCollision() {
	if m == nil || m.numberCollisions == nil {
		return
	}
	m.numberCollisions.Inc()
}

func (m *SettlementMetrics) IncProfitCreditFailure() {
	if m == nil || m.profitCreditFailures == nil {
		return
	}
	m.profitCreditFailures.Inc()
}

// IncWithdrawal counts a withdrawal entering status.
func (m *SettlementMetrics) IncWithdrawal(status string) {
	if m == nil || m.withdrawals == nil {
		return
	}
	m.withdrawals.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveReconciliation records one reconciler pass and the items it repaired.
func (m *SettlementMetrics) ObserveReconciliation(settled, credited int, err error) {
	if m == nil || m.reconcileRuns == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "partial_failure"
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	m.reconciledItems.WithLabelValues("settlement").Add(float64(settled))
	m.reconciledItems.WithLabelValues("profit_credit").Add(float64(credited))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
