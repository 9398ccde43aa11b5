package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"etatcivil/internal/sequence/models"
	"etatcivil/internal/sequence/store/counter"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
)

type AllocatorSuite struct {
	suite.Suite
	store     *counter.MemoryStore
	allocator *Allocator
	ctx       context.Context
	communeID id.CommuneID
}

func (s *AllocatorSuite) SetupTest() {
	s.store = counter.NewMemory()
	s.allocator = New(s.store)
	s.communeID = id.NewCommuneID()
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
}

func TestAllocatorSuite(t *testing.T) {
	suite.Run(t, new(AllocatorSuite))
}

func (s *AllocatorSuite) TestActNumbersAreSequentialPerScope() {
	first, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.False(first.Degraded)
	s.Equal("ACTENAISS2024000001", first.Number)

	second, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.Equal("ACTENAISS2024000002", second.Number)

	// A different act type is an independent scope.
	death, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActDeath)
	s.Require().NoError(err)
	s.Equal("ACTEDECES2024000001", death.Number)

	// A different commune is an independent scope.
	other, err := s.allocator.NextActNumber(s.ctx, id.NewCommuneID(), id.ActBirth)
	s.Require().NoError(err)
	s.Equal("ACTENAISS2024000001", other.Number)
}

func (s *AllocatorSuite) TestActCounterResetsAtYearBoundary() {
	_, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	_, err = s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)

	nextYear := requestcontext.WithTime(context.Background(),
		time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC))
	alloc, err := s.allocator.NextActNumber(nextYear, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.Equal("ACTENAISS2025000001", alloc.Number)
}

func (s *AllocatorSuite) TestRegistryNumberCarriesPage() {
	for i := 1; i <= 10; i++ {
		alloc, err := s.allocator.NextRegistryNumber(s.ctx, s.communeID, id.ActBirth)
		s.Require().NoError(err)
		s.Equal(fmt.Sprintf("REG-NAISSANCE-2024-%03d", i), alloc.Number)
		s.Equal("P001", alloc.Page)
	}

	eleventh, err := s.allocator.NextRegistryNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.Equal("REG-NAISSANCE-2024-011", eleventh.Number)
	s.Equal("P002", eleventh.Page)
}

func (s *AllocatorSuite) TestRequestNumbersSurviveYearBoundary() {
	first, err := s.allocator.NextRequestNumber(s.ctx, s.communeID, id.ActBirth, "Koné")
	s.Require().NoError(err)
	s.Equal("DEM-NAI-2024-00001-KON", first.Number)

	// Year roll resets act and registry counters but not request counters.
	nextYear := requestcontext.WithTime(context.Background(),
		time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC))
	second, err := s.allocator.NextRequestNumber(nextYear, s.communeID, id.ActBirth, "")
	s.Require().NoError(err)
	s.Equal("DEM-NAI-2025-00002", second.Number)
}

func (s *AllocatorSuite) TestFallbackAfterExhaustedRetries() {
	failing := &failingStore{err: errors.New("connection refused")}
	allocator := New(failing, WithMaxAttempts(3))

	alloc, err := allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.True(alloc.Degraded)
	s.Contains(alloc.Number, "ACTENAISS-20240601100000-")
	s.Equal(3, failing.calls)
}

func (s *AllocatorSuite) TestTransientFailureRecoversWithoutFallback() {
	flaky := &flakyStore{inner: s.store, failures: 2}
	allocator := New(flaky, WithMaxAttempts(3))

	alloc, err := allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.False(alloc.Degraded)
	s.Equal("ACTENAISS2024000001", alloc.Number)
}

func (s *AllocatorSuite) TestConcurrentAllocationsNeverCollide() {
	const workers = 50

	var mu sync.Mutex
	seen := make(map[string]bool)

	g := new(errgroup.Group)
	for range workers {
		g.Go(func() error {
			alloc, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
			if err != nil {
				return err
			}
			if alloc.Degraded {
				return errors.New("unexpected degraded allocation")
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[alloc.Number] {
				return fmt.Errorf("duplicate number %s", alloc.Number)
			}
			seen[alloc.Number] = true
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Len(seen, workers)

	// The next allocation continues after the highest issued value.
	next, err := s.allocator.NextActNumber(s.ctx, s.communeID, id.ActBirth)
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("ACTENAISS2024%06d", workers+1), next.Number)
}

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Allocate(_ context.Context, _ id.CommuneID, _ id.ActType, _ func(*models.Counter) error) error {
	f.calls++
	return f.err
}

type flakyStore struct {
	inner    *counter.MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) Allocate(ctx context.Context, communeID id.CommuneID, actType id.ActType, fn func(*models.Counter) error) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("deadlock detected")
	}
	return f.inner.Allocate(ctx, communeID, actType, fn)
}
