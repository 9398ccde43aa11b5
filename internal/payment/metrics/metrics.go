package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the payment sub-machine.
type Metrics struct {
	Initiated *prometheus.CounterVec
	Confirmed prometheus.Counter
	Failed    prometheus.Counter
	Refunded  prometheus.Counter
}

// New creates a Metrics instance with all payment module metrics registered.
func New() *Metrics {
	return &Metrics{
		Initiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_payments_initiated_total",
			Help: "Payments initiated, by method",
		}, []string{"method"}),
		Confirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_payments_confirmed_total",
			Help: "Payments confirmed",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_payments_failed_total",
			Help: "Payments that failed, expired, or were cancelled",
		}),
		Refunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_payments_refunded_total",
			Help: "Payments refunded",
		}),
	}
}

// IncrementInitiated records an initiated payment.
func (m *Metrics) IncrementInitiated(method string) {
	if m == nil {
		return
	}
	m.Initiated.WithLabelValues(method).Inc()
}

// IncrementConfirmed records a confirmed payment.
func (m *Metrics) IncrementConfirmed() {
	if m == nil {
		return
	}
	m.Confirmed.Inc()
}

// IncrementFailed records a payment that fell through.
func (m *Metrics) IncrementFailed() {
	if m == nil {
		return
	}
	m.Failed.Inc()
}

// IncrementRefunded records a refunded payment.
func (m *Metrics) IncrementRefunded() {
	if m == nil {
		return
	}
	m.Refunded.Inc()
}
