package counter

import (
	"context"
	"sync"

	"etatcivil/internal/sequence/models"
	id "etatcivil/pkg/domain"
)

// MemoryStore is the in-memory mirror of PostgresStore. A single mutex
// plays the role of the row lock, so Allocate keeps the same
// validate-then-mutate atomicity.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*models.Counter
}

// NewMemory constructs an empty in-memory counter store.
func NewMemory() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*models.Counter)}
}

// Allocate runs fn against the counter for (commune, act type) under the
// store lock, discarding the mutation when fn fails.
func (s *MemoryStore) Allocate(ctx context.Context, communeID id.CommuneID, actType id.ActType, fn func(*models.Counter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := communeID.String() + "|" + string(actType)
	counter, ok := s.counters[key]
	if !ok {
		counter = &models.Counter{CommuneID: communeID, ActType: actType}
		s.counters[key] = counter
	}

	snapshot := *counter
	if err := fn(counter); err != nil {
		*counter = snapshot
		return err
	}
	return nil
}
