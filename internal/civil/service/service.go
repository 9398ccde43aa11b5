package service

import (
	"context"
	"errors"
	"log/slog"

	civilmetrics "etatcivil/internal/civil/metrics"
	"etatcivil/internal/civil/models"
	seqservice "etatcivil/internal/sequence/service"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

// ActStore persists civil acts.
type ActStore interface {
	Create(ctx context.Context, act *models.Act) error
	FindByID(ctx context.Context, actID id.ActID) (*models.Act, error)
	FindByActNumber(ctx context.Context, number string) (*models.Act, error)
}

// NumberAllocator issues legal identifiers for new acts.
type NumberAllocator interface {
	NextActNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType) (seqservice.Allocation, error)
	NextRegistryNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType) (seqservice.RegistryAllocation, error)
}

// AuditEmitter records registry actions. Emission never blocks the
// registration path.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates act registration.
type Service struct {
	acts      ActStore
	allocator NumberAllocator
	logger    *slog.Logger
	metrics   *civilmetrics.Metrics
	audit     AuditEmitter
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *civilmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditEmitter(emitter AuditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

// New constructs a civil Service.
func New(acts ActStore, allocator NumberAllocator, opts ...Option) *Service {
	s := &Service{
		acts:      acts,
		allocator: allocator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAct validates the payload, mints the act and registry numbers,
// and persists the act. Numbering happens exactly once: a degraded
// allocation is kept, flagged, and surfaced for regularization rather than
// re-allocated.
func (s *Service) RegisterAct(ctx context.Context, input models.RegistrationInput) (*models.Act, error) {
	now := requestcontext.Now(ctx)
	if err := input.Validate(now); err != nil {
		return nil, err
	}

	actAlloc, err := s.allocator.NextActNumber(ctx, input.CommuneID, input.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate act number")
	}
	regAlloc, err := s.allocator.NextRegistryNumber(ctx, input.CommuneID, input.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate registry number")
	}

	act := &models.Act{
		ID:             id.NewActID(),
		Type:           input.Type,
		ActNumber:      actAlloc.Number,
		RegistryNumber: regAlloc.Number,
		RegistryPage:   regAlloc.Page,
		CommuneID:      input.CommuneID,
		SubjectName:    input.SubjectName,
		SubjectGiven:   input.SubjectGiven,
		SpouseName:     input.SpouseName,
		SpouseGiven:    input.SpouseGiven,
		EventDate:      input.EventDate,
		RegisteredBy:   requestcontext.AgentID(ctx),
		DegradedNumber: actAlloc.Degraded || regAlloc.Degraded,
		CreatedAt:      now,
	}

	if err := s.acts.Create(ctx, act); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "act number already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store act")
	}

	if act.DegradedNumber {
		s.metrics.IncrementDegraded()
		s.logger.WarnContext(ctx, "act registered with degraded numbering",
			"act_number", act.ActNumber,
			"commune_id", act.CommuneID.String(),
		)
	}
	s.metrics.IncrementRegistered(string(act.Type))
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionActRegistered,
		Subject:   act.ActNumber,
		AgentID:   act.RegisteredBy,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return act, nil
}

// GetAct retrieves an act by ID.
func (s *Service) GetAct(ctx context.Context, actID id.ActID) (*models.Act, error) {
	if actID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "act id is required")
	}
	act, err := s.acts.FindByID(ctx, actID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "act not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up act")
	}
	return act, nil
}

// GetActByNumber retrieves an act by its legal number.
func (s *Service) GetActByNumber(ctx context.Context, number string) (*models.Act, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "act number is required")
	}
	act, err := s.acts.FindByActNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "act not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up act")
	}
	return act, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, event)
}
