package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for act registration.
type Metrics struct {
	ActsRegistered  *prometheus.CounterVec
	DegradedNumbers prometheus.Counter
}

// New creates a Metrics instance with all civil module metrics registered.
func New() *Metrics {
	return &Metrics{
		ActsRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_acts_registered_total",
			Help: "Civil acts registered, by act type",
		}, []string{"type"}),
		DegradedNumbers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_acts_degraded_numbers_total",
			Help: "Acts registered with fallback identifiers needing regularization",
		}),
	}
}

// IncrementRegistered records a successful registration.
func (m *Metrics) IncrementRegistered(actType string) {
	if m == nil {
		return
	}
	m.ActsRegistered.WithLabelValues(actType).Inc()
}

// IncrementDegraded records a registration that used fallback numbering.
func (m *Metrics) IncrementDegraded() {
	if m == nil {
		return
	}
	m.DegradedNumbers.Inc()
}
