//go:build integration

package counter_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	seqservice "etatcivil/internal/sequence/service"
	"etatcivil/internal/sequence/store/counter"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
	"etatcivil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *counter.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = counter.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "act_sequences")
	s.Require().NoError(err)
}

// TestConcurrentAllocationsAreGapFree verifies the FOR UPDATE row lock:
// concurrent allocators must produce a dense, duplicate-free sequence.
func (s *PostgresStoreSuite) TestConcurrentAllocationsAreGapFree() {
	const goroutines = 40

	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	communeID := id.NewCommuneID()
	allocator := seqservice.New(s.store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := make(map[string]bool)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc, err := allocator.NextActNumber(ctx, communeID, id.ActBirth)
			s.Require().NoError(err)
			s.Require().False(alloc.Degraded)
			mu.Lock()
			defer mu.Unlock()
			s.Require().False(numbers[alloc.Number], "duplicate number %s", alloc.Number)
			numbers[alloc.Number] = true
		}()
	}
	wg.Wait()

	s.Len(numbers, goroutines)
	for i := 1; i <= goroutines; i++ {
		s.True(numbers[fmt.Sprintf("ACTENAISS2024%06d", i)], "missing sequence value %d", i)
	}
}

func (s *PostgresStoreSuite) TestYearResetPersists() {
	ctx2024 := requestcontext.WithTime(context.Background(),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	ctx2025 := requestcontext.WithTime(context.Background(),
		time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC))

	communeID := id.NewCommuneID()
	allocator := seqservice.New(s.store)

	alloc, err := allocator.NextActNumber(ctx2024, communeID, id.ActDeath)
	s.Require().NoError(err)
	s.Equal("ACTEDECES2024000001", alloc.Number)

	request, err := allocator.NextRequestNumber(ctx2024, communeID, id.ActDeath, "Traoré")
	s.Require().NoError(err)
	s.Equal("DEM-DEC-2024-00001-TRA", request.Number)

	// Act counter resets with the year; the request counter does not.
	alloc, err = allocator.NextActNumber(ctx2025, communeID, id.ActDeath)
	s.Require().NoError(err)
	s.Equal("ACTEDECES2025000001", alloc.Number)

	request, err = allocator.NextRequestNumber(ctx2025, communeID, id.ActDeath, "")
	s.Require().NoError(err)
	s.Equal("DEM-DEC-2025-00002", request.Number)
}
