package tariff

import (
	"context"
	"sync"

	"etatcivil/internal/tariff/models"
	"etatcivil/pkg/platform/sentinel"
)

// MemoryStore is the in-memory mirror of PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	tariffs map[string][]*models.Tariff
}

// NewMemory constructs an empty in-memory tariff store.
func NewMemory() *MemoryStore {
	return &MemoryStore{tariffs: make(map[string][]*models.Tariff)}
}

// FindActiveByKey returns the single active tariff for a key.
func (s *MemoryStore) FindActiveByKey(ctx context.Context, key string) (*models.Tariff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tariffs[key] {
		if t.Active {
			copied := *t
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Upsert writes a tariff entry, deactivating any previously active entry
// for the same key when the new one is active.
func (s *MemoryStore) Upsert(ctx context.Context, tariff *models.Tariff) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.tariffs[tariff.Key]
	if tariff.Active {
		for _, t := range entries {
			t.Active = false
		}
	}
	copied := *tariff
	for i, t := range entries {
		if t.AppliedFrom.Equal(tariff.AppliedFrom) {
			entries[i] = &copied
			s.tariffs[tariff.Key] = entries
			return nil
		}
	}
	s.tariffs[tariff.Key] = append(entries, &copied)
	return nil
}
