package document

import (
	"context"
	"sync"

	"etatcivil/internal/docgen/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// MemoryStore is the in-memory mirror of PostgresStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[id.RequestID]*models.Document
}

// NewMemory constructs an empty in-memory document store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[id.RequestID]*models.Document)}
}

// Upsert writes document metadata, keyed by request. One document per
// request; regeneration replaces the previous record.
func (s *MemoryStore) Upsert(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *doc
	s.docs[doc.RequestID] = &copied
	return nil
}

// FindByRequestID retrieves the document generated for a request.
func (s *MemoryStore) FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}
