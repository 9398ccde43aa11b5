package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request workflow. RefundFailures
// is the metric to page on: it counts rejections whose compensating refund
// did not go through.
type Metrics struct {
	RequestsCreated prometheus.Counter
	Transitions     *prometheus.CounterVec
	RefundFailures  prometheus.Counter
}

// New creates a Metrics instance with all request module metrics registered.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_requests_created_total",
			Help: "Document requests created",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_request_transitions_total",
			Help: "Workflow transitions applied, by transition name",
		}, []string{"transition"}),
		RefundFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_refund_failures_total",
			Help: "Rejections whose compensating refund failed and needs operator reconciliation",
		}),
	}
}

// IncrementCreated records a created request.
func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.RequestsCreated.Inc()
}

// IncrementTransition records an applied workflow transition.
func (m *Metrics) IncrementTransition(name string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name).Inc()
}

// IncrementRefundFailure records a failed compensating refund.
func (m *Metrics) IncrementRefundFailure() {
	if m == nil {
		return
	}
	m.RefundFailures.Inc()
}
