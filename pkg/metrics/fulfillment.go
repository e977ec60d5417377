package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records dropship order lifecycle activity.
type FulfillmentMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	issues      prometheus.Counter
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropship_order_transitions",
		Help: "Dropship order status transitions applied.",
	}, []string{"from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropship_order_transitions_rejected",
		Help: "Dropship order status transitions refused by the state machine.",
	}, []string{"from", "to"})
	issues := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dropship_order_issues",
		Help: "Dropship orders flagged for operator attention.",
	})
	reg.MustRegister(transitions, rejected, issues)
	return &FulfillmentMetrics{
		transitions: transitions,
		rejected:    rejected,
		issues:      issues,
	}
}

// IncTransition counts an applied status transition.
func (f *FulfillmentMetrics) IncTransition(from, to string) {
	if f == nil || f.transitions == nil {
		return
	}
	f.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncRejected counts a transition refused by the state machine.
func (f *FulfillmentMetrics) IncRejected(from, to string) {
	if f == nil || f.rejected == nil {
		return
	}
	f.rejected.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncIssue counts an order flagged with an issue.
func (f *FulfillmentMetrics) IncIssue() {
	if f == nil || f.issues == nil {
		return
	}
	f.issues.Inc()
}
