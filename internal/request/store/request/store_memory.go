package request

import (
	"context"
	"sync"

	"etatcivil/internal/request/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// MemoryStore is the in-memory mirror of PostgresStore. The store mutex
// plays the role of the row lock in Execute.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[id.RequestID]*models.Request
	byTracking map[string]id.RequestID
}

// NewMemory constructs an empty in-memory request store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[id.RequestID]*models.Request),
		byTracking: make(map[string]id.RequestID),
	}
}

// Create inserts a new request, enforcing number uniqueness.
func (s *MemoryStore) Create(ctx context.Context, req *models.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[req.ID]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byTracking[req.TrackingNumber]; exists {
		return sentinel.ErrDuplicate
	}
	copied := *req
	s.byID[req.ID] = &copied
	s.byTracking[req.TrackingNumber] = req.ID
	return nil
}

// FindByID retrieves a request.
func (s *MemoryStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

// FindByTrackingNumber retrieves a request by its public tracking number.
func (s *MemoryStore) FindByTrackingNumber(ctx context.Context, number string) (*models.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requestID, ok := s.byTracking[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[requestID]
	return &copied, nil
}

// Execute runs validate and mutate under the store lock, discarding the
// mutation when validation fails.
func (s *MemoryStore) Execute(ctx context.Context, requestID id.RequestID,
	validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)

	copied := *req
	return &copied, nil
}
