package service

import (
	"context"
	"log/slog"
	"time"

	seqmetrics "etatcivil/internal/sequence/metrics"
	"etatcivil/internal/sequence/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
)

// CounterStore provides locked access to the allocation counter of one
// (commune, act type) scope. Allocate holds the lock (mutex or FOR UPDATE)
// while fn runs, so advancement and persistence are atomic.
type CounterStore interface {
	Allocate(ctx context.Context, communeID id.CommuneID, actType id.ActType, fn func(*models.Counter) error) error
}

// Allocation is one issued identifier. Degraded marks a timestamp+random
// fallback issued after the counter could not be reached; fallback numbers
// are unique but break the sequential legal numbering and must be
// regularized by an operator.
type Allocation struct {
	Number   string
	Degraded bool
}

// RegistryAllocation pairs a registry number with its page label.
type RegistryAllocation struct {
	Number   string
	Page     string
	Degraded bool
}

const defaultMaxAttempts = 3

// Allocator issues legally numbered identifiers. Storage failures are
// retried a bounded number of times, then the allocator degrades to
// fallback numbers rather than blocking registration.
type Allocator struct {
	counters    CounterStore
	logger      *slog.Logger
	metrics     *seqmetrics.Metrics
	maxAttempts int
}

type Option func(a *Allocator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

func WithMetrics(m *seqmetrics.Metrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// New constructs an Allocator.
func New(counters CounterStore, opts ...Option) *Allocator {
	a := &Allocator{
		counters:    counters,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NextActNumber issues the next act number for the scope, resetting the
// sequence at year boundaries. Falls back to a degraded number after
// repeated storage failures; the error return is reserved for invalid
// input, not storage trouble.
func (a *Allocator) NextActNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType) (Allocation, error) {
	now := requestcontext.Now(ctx)
	year := now.Year()

	var number string
	err := a.allocate(ctx, communeID, actType, func(c *models.Counter) error {
		number = formatActNumber(actType, year, c.NextActNumber(year))
		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "act number allocation degraded to fallback",
			"commune_id", communeID.String(),
			"act_type", string(actType),
			"error", err,
		)
		a.metrics.IncrementFallback("act")
		return Allocation{Number: fallbackNumber(actType.NumberPrefix(), now), Degraded: true}, nil
	}
	a.metrics.IncrementIssued("act")
	return Allocation{Number: number}, nil
}

// NextRegistryNumber issues the next registry number and its page label,
// resetting the sequence at year boundaries.
func (a *Allocator) NextRegistryNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType) (RegistryAllocation, error) {
	now := requestcontext.Now(ctx)
	year := now.Year()

	var number, page string
	err := a.allocate(ctx, communeID, actType, func(c *models.Counter) error {
		seq := c.NextRegistryNumber(year)
		number = formatRegistryNumber(actType, year, seq)
		page = RegistryPage(seq)
		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "registry number allocation degraded to fallback",
			"commune_id", communeID.String(),
			"act_type", string(actType),
			"error", err,
		)
		a.metrics.IncrementFallback("registry")
		return RegistryAllocation{
			Number:   fallbackNumber("REG-"+string(actType), now),
			Page:     "P000",
			Degraded: true,
		}, nil
	}
	a.metrics.IncrementIssued("registry")
	return RegistryAllocation{Number: number, Page: page}, nil
}

// NextRequestNumber issues the next document-request number. Request
// sequences never reset, so numbers stay unique across years. An optional
// surname seeds a three-letter fragment in the number.
func (a *Allocator) NextRequestNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType, surname string) (Allocation, error) {
	now := requestcontext.Now(ctx)
	year := now.Year()

	var number string
	err := a.allocate(ctx, communeID, actType, func(c *models.Counter) error {
		number = formatRequestNumber(actType, year, c.NextRequestNumber(year), surname)
		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "request number allocation degraded to fallback",
			"commune_id", communeID.String(),
			"act_type", string(actType),
			"error", err,
		)
		a.metrics.IncrementFallback("request")
		return Allocation{Number: fallbackNumber("DEM-"+actType.ShortCode(), now), Degraded: true}, nil
	}
	a.metrics.IncrementIssued("request")
	return Allocation{Number: number}, nil
}

// allocate is the bounded-retry combinator around the store. Each failed
// attempt is retried with a short backoff; exhausting attempts returns the
// last error so callers can degrade.
func (a *Allocator) allocate(ctx context.Context, communeID id.CommuneID, actType id.ActType, fn func(*models.Counter) error) error {
	start := time.Now()
	defer a.metrics.ObserveAllocate(start)

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		lastErr = a.counters.Allocate(ctx, communeID, actType, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		a.metrics.IncrementRetry()
		a.logger.WarnContext(ctx, "counter allocation attempt failed",
			"attempt", attempt,
			"max_attempts", a.maxAttempts,
			"error", lastErr,
		)
		if attempt < a.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}
