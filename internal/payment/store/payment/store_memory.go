package payment

import (
	"context"
	"sync"

	"etatcivil/internal/payment/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// MemoryStore is the in-memory mirror of PostgresStore.
type MemoryStore struct {
	mu        sync.Mutex
	byID      map[id.PaymentID]*models.Payment
	byRequest map[id.RequestID]id.PaymentID
	byRef     map[string]id.PaymentID
}

// NewMemory constructs an empty in-memory payment store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[id.PaymentID]*models.Payment),
		byRequest: make(map[id.RequestID]id.PaymentID),
		byRef:     make(map[string]id.PaymentID),
	}
}

// Create inserts a new payment, enforcing one payment per request and
// transaction reference uniqueness.
func (s *MemoryStore) Create(ctx context.Context, p *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRequest[p.RequestID]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byRef[p.TransactionReference]; exists {
		return sentinel.ErrDuplicate
	}
	copied := *p
	s.byID[p.ID] = &copied
	s.byRequest[p.RequestID] = p.ID
	s.byRef[p.TransactionReference] = p.ID
	return nil
}

// FindByRequestID retrieves the payment of a request.
func (s *MemoryStore) FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	paymentID, ok := s.byRequest[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[paymentID]
	return &copied, nil
}

// FindByTransactionReference retrieves a payment by our reference.
func (s *MemoryStore) FindByTransactionReference(ctx context.Context, ref string) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	paymentID, ok := s.byRef[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[paymentID]
	return &copied, nil
}

// Execute runs validate and mutate under the store lock, discarding the
// mutation when validation fails.
func (s *MemoryStore) Execute(ctx context.Context, paymentID id.PaymentID,
	validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	oldRef := p.TransactionReference
	mutate(p)
	if p.TransactionReference != oldRef {
		delete(s.byRef, oldRef)
		s.byRef[p.TransactionReference] = p.ID
	}

	copied := *p
	return &copied, nil
}
