package metrics

import "github.com/prometheus/client_golang/prometheus"

// Checkout submission outcomes.
const (
	CheckoutOutcomeRemote   = "remote"
	CheckoutOutcomeLocal    = "local"
	CheckoutOutcomeRejected = "rejected"
	CheckoutOutcomeFailed   = "failed"
)

// CheckoutMetrics counts order submissions by where the order ended up.
type CheckoutMetrics struct {
	submissions *prometheus.CounterVec
	total       prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})
	total := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_order_total_pesos",
		Help: "Sum of accepted order totals in CLP.",
	})
	reg.MustRegister(submissions, total)
	return &CheckoutMetrics{submissions: submissions, total: total}
}

// Observe records one submission; amount is only added for accepted orders.
func (m *CheckoutMetrics) Observe(outcome string, amount int64) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
	if (outcome == CheckoutOutcomeRemote || outcome == CheckoutOutcomeLocal) && amount > 0 {
		m.total.Add(float64(amount))
	}
}
