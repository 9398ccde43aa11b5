package act

import (
	"context"
	"sync"

	"etatcivil/internal/civil/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// MemoryStore is the in-memory mirror of PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.ActID]*models.Act
	byNumber map[string]id.ActID
}

// NewMemory constructs an empty in-memory act store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[id.ActID]*models.Act),
		byNumber: make(map[string]id.ActID),
	}
}

// Create inserts a new act, enforcing act-number uniqueness.
func (s *MemoryStore) Create(ctx context.Context, act *models.Act) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[act.ActNumber]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byID[act.ID]; exists {
		return sentinel.ErrDuplicate
	}
	copied := *act
	s.byID[act.ID] = &copied
	s.byNumber[act.ActNumber] = act.ID
	return nil
}

// FindByID retrieves an act by its identifier.
func (s *MemoryStore) FindByID(ctx context.Context, actID id.ActID) (*models.Act, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	act, ok := s.byID[actID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *act
	return &copied, nil
}

// FindByActNumber retrieves an act by its legal number.
func (s *MemoryStore) FindByActNumber(ctx context.Context, number string) (*models.Act, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	actID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[actID]
	return &copied, nil
}
