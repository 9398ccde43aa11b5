package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sequence allocator. Fallback
// issuance is the signal to alert on: it means the counter was unreachable
// and degraded identifiers are being handed out.
type Metrics struct {
	NumbersIssued    *prometheus.CounterVec
	FallbacksIssued  *prometheus.CounterVec
	AllocateRetries  prometheus.Counter
	AllocateDuration prometheus.Histogram
}

// New creates a Metrics instance with all allocator metrics registered.
func New() *Metrics {
	return &Metrics{
		NumbersIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_sequence_numbers_issued_total",
			Help: "Identifiers issued from the counter, by kind (act, registry, request)",
		}, []string{"kind"}),
		FallbacksIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "etatcivil_sequence_fallbacks_issued_total",
			Help: "Degraded timestamp+random identifiers issued after counter failure, by kind",
		}, []string{"kind"}),
		AllocateRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "etatcivil_sequence_allocate_retries_total",
			Help: "Counter allocation attempts that failed and were retried",
		}),
		AllocateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "etatcivil_sequence_allocate_duration_seconds",
			Help:    "Duration of counter allocations including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementIssued records a successful counter-backed issuance.
func (m *Metrics) IncrementIssued(kind string) {
	if m == nil {
		return
	}
	m.NumbersIssued.WithLabelValues(kind).Inc()
}

// IncrementFallback records a degraded issuance.
func (m *Metrics) IncrementFallback(kind string) {
	if m == nil {
		return
	}
	m.FallbacksIssued.WithLabelValues(kind).Inc()
}

// IncrementRetry records a failed allocation attempt that will be retried.
func (m *Metrics) IncrementRetry() {
	if m == nil {
		return
	}
	m.AllocateRetries.Inc()
}

// ObserveAllocate records the duration of an allocation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAllocate(start time.Time) {
	if m == nil {
		return
	}
	m.AllocateDuration.Observe(time.Since(start).Seconds())
}
