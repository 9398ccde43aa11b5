package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestmodels "etatcivil/internal/request/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

type fakeLookup struct {
	req   *requestmodels.Request
	calls int
}

func (f *fakeLookup) GetByTrackingNumber(_ context.Context, number string) (*requestmodels.Request, error) {
	f.calls++
	if f.req == nil || f.req.TrackingNumber != number {
		return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return f.req, nil
}

type fakeCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	f.ttls[key] = ttl
	return nil
}

func trackedRequest() *requestmodels.Request {
	return &requestmodels.Request{
		ID:             id.NewRequestID(),
		TrackingNumber: "DEM202606ABCD1234",
		ActType:        id.ActBirth,
		Variant:        id.VariantFullCopy,
		CopyCount:      2,
		Status:         requestmodels.StatusInProgress,
		CreatedAt:      time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestGetWithoutCache(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	svc := New(lookup)

	view, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.Equal(t, "NAISSANCE", view.ActType)
	assert.Equal(t, 2, view.CopyCount)
}

func TestGetUnknownNumber(t *testing.T) {
	svc := New(&fakeLookup{})
	_, err := svc.Get(context.Background(), "DEM202606ZZZZ0000")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUnconfiguredRedisDisablesCache(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	svc := New(lookup, WithCache(NewRedisCache(nil), time.Minute))

	var view *View
	var err error
	require.NotPanics(t, func() {
		view, err = svc.Get(context.Background(), lookup.req.TrackingNumber)
	})
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.Equal(t, 1, lookup.calls)
}

func TestReadThrough(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	cache := newFakeCache()
	svc := New(lookup, WithCache(cache, time.Minute))

	first, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, time.Minute, cache.ttls[cacheKey(lookup.req.TrackingNumber)])

	second, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.calls, "second read must come from cache")
	assert.Equal(t, first, second)
}

func TestTerminalRequestsCacheLonger(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	lookup.req.Status = requestmodels.StatusDelivered
	cache := newFakeCache()
	svc := New(lookup, WithCache(cache, time.Minute))

	_, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cache.ttls[cacheKey(lookup.req.TrackingNumber)])
}

func TestCacheFailuresFallThrough(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	cache := newFakeCache()
	cache.getErr = dErrors.New(dErrors.CodeUnavailable, "redis down")
	cache.setErr = cache.getErr
	svc := New(lookup, WithCache(cache, time.Minute))

	view, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.Equal(t, 1, lookup.calls)
}

func TestCorruptEntryDiscarded(t *testing.T) {
	lookup := &fakeLookup{req: trackedRequest()}
	cache := newFakeCache()
	cache.entries[cacheKey(lookup.req.TrackingNumber)] = []byte("{not json")
	svc := New(lookup, WithCache(cache, time.Minute))

	view, err := svc.Get(context.Background(), lookup.req.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.Equal(t, 1, lookup.calls)
}
