package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	civilmodels "etatcivil/internal/civil/models"
	docmodels "etatcivil/internal/docgen/models"
	"etatcivil/internal/notify"
	requestmetrics "etatcivil/internal/request/metrics"
	"etatcivil/internal/request/models"
	seqservice "etatcivil/internal/sequence/service"
	tariffmodels "etatcivil/internal/tariff/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

// RequestStore persists document requests.
type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	FindByTrackingNumber(ctx context.Context, number string) (*models.Request, error)
	Execute(ctx context.Context, requestID id.RequestID,
		validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error)
}

// ActCatalog resolves the act a request references.
type ActCatalog interface {
	GetAct(ctx context.Context, actID id.ActID) (*civilmodels.Act, error)
}

// NumberAllocator issues request numbers.
type NumberAllocator interface {
	NextRequestNumber(ctx context.Context, communeID id.CommuneID, actType id.ActType, surname string) (seqservice.Allocation, error)
}

// Pricer prices a request at validation time.
type Pricer interface {
	Quote(ctx context.Context, actType id.ActType, variant id.DocumentVariant, copies int) (tariffmodels.Quote, error)
}

// PaymentGate is the payment side of the workflow.
type PaymentGate interface {
	HasConfirmedPayment(ctx context.Context, requestID id.RequestID) (bool, error)
	CancelForRequest(ctx context.Context, requestID id.RequestID) (bool, error)
	Refund(ctx context.Context, requestID id.RequestID) (bool, error)
}

// DocumentProducer renders and records the deliverable.
type DocumentProducer interface {
	GenerateAndStore(ctx context.Context, req *models.Request) (*docmodels.Document, error)
}

// AuditEmitter records workflow transitions.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates the request workflow.
type Service struct {
	requests  RequestStore
	acts      ActCatalog
	allocator NumberAllocator
	pricer    Pricer
	payments  PaymentGate
	documents DocumentProducer
	notifier  notify.Notifier
	logger    *slog.Logger
	metrics   *requestmetrics.Metrics
	audit     AuditEmitter
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *requestmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditEmitter(emitter AuditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithDocumentProducer(d DocumentProducer) Option {
	return func(s *Service) { s.documents = d }
}

// New constructs a request Service. BindPayments wires the payment gate
// after both services exist.
func New(requests RequestStore, acts ActCatalog, allocator NumberAllocator, pricer Pricer, opts ...Option) *Service {
	s := &Service{
		requests:  requests,
		acts:      acts,
		allocator: allocator,
		pricer:    pricer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindPayments wires the payment gate.
func (s *Service) BindPayments(gate PaymentGate) {
	s.payments = gate
}

// Create registers a citizen's request against exactly one act.
func (s *Service) Create(ctx context.Context, input models.CreationInput) (*models.Request, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	act, err := s.acts.GetAct(ctx, input.ActID)
	if err != nil {
		return nil, err
	}
	if act.Type != input.ActType {
		return nil, dErrors.New(dErrors.CodeBadRequest, "act type does not match the referenced act")
	}

	now := requestcontext.Now(ctx)
	numberAlloc, err := s.allocator.NextRequestNumber(ctx, act.CommuneID, act.Type, act.SubjectName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate request number")
	}
	if numberAlloc.Degraded {
		s.logger.WarnContext(ctx, "request number issued from fallback sequence",
			"request_number", numberAlloc.Number,
		)
	}

	req := &models.Request{
		ID:              id.NewRequestID(),
		RequestNumber:   numberAlloc.Number,
		TrackingNumber:  models.NewTrackingNumber(now),
		RequesterID:     input.RequesterID,
		ActID:           act.ID,
		ActType:         act.Type,
		Variant:         input.Variant,
		CopyCount:       input.CopyCount,
		CommuneID:       act.CommuneID,
		Status:          models.StatusPending,
		Withdrawal:      input.Withdrawal,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		PaymentRequired: true,
		CreatedAt:       now,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "request number already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store request")
	}

	s.metrics.IncrementCreated()
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestCreated,
		Subject:   req.RequestNumber,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

// Get retrieves a request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	if requestID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return req, nil
}

// GetByTrackingNumber retrieves a request by its public tracking number.
func (s *Service) GetByTrackingNumber(ctx context.Context, number string) (*models.Request, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tracking number is required")
	}
	req, err := s.requests.FindByTrackingNumber(ctx, number)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return req, nil
}

// ValidatePreliminary prices the request and moves it past the agent's
// preliminary check. The amount is computed here, exactly once; a request
// with unavailable pricing stays PENDING. The agent may waive the fee,
// which routes the request straight to PAYMENT_CONFIRMED.
func (s *Service) ValidatePreliminary(ctx context.Context, requestID id.RequestID, note string, waiveFee bool) (*models.Request, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// Variant and copy count are immutable after creation, so pricing
	// outside the lock is safe.
	quote, err := s.pricer.Quote(ctx, current.ActType, current.Variant, current.CopyCount)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanValidate() },
		func(r *models.Request) {
			if waiveFee {
				r.ApplyFeeWaiver()
			}
			r.ApplyValidation(agentID, quote.TotalAmount, note, now)
		})
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	var reason string
	if waiveFee {
		reason = "payment waived"
	}
	s.metrics.IncrementTransition("validate")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestValidated,
		Subject:   req.RequestNumber,
		AgentID:   agentID,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

// ConfirmPayment advances the request past the payment gate. The money
// must actually be in: a confirmed payment is checked, not assumed.
func (s *Service) ConfirmPayment(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}
	return s.confirmPayment(ctx, requestID)
}

// OnPaymentConfirmed is the webhook-driven entry to the same transition.
func (s *Service) OnPaymentConfirmed(ctx context.Context, requestID id.RequestID) error {
	_, err := s.confirmPayment(ctx, requestID)
	return err
}

func (s *Service) confirmPayment(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	now := requestcontext.Now(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error {
			if err := r.CanConfirmPayment(); err != nil {
				return err
			}
			if !r.PaymentRequired {
				return nil
			}
			confirmed, err := s.payments.HasConfirmedPayment(ctx, r.ID)
			if err != nil {
				return err
			}
			if !confirmed {
				return dErrors.New(dErrors.CodeInvariantViolation, "request has no confirmed payment")
			}
			return nil
		},
		func(r *models.Request) { r.ApplyPaymentConfirmed() })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.metrics.IncrementTransition("confirm_payment")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionPaymentConfirmed,
		Subject:   req.RequestNumber,
		AgentID:   requestcontext.AgentID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

// OnPaymentAborted sends a request back to the validation queue after its
// payment failed, expired, or was cancelled by the gateway.
func (s *Service) OnPaymentAborted(ctx context.Context, requestID id.RequestID) error {
	_, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanResetToPending() },
		func(r *models.Request) { r.ApplyResetToPending() })
	if err != nil {
		return wrapRequestErr(err)
	}
	s.metrics.IncrementTransition("reset_to_pending")
	return nil
}

// StartProcessing assigns the request to the acting agent.
func (s *Service) StartProcessing(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanStartProcessing() },
		func(r *models.Request) { r.ApplyProcessing(agentID, now) })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.metrics.IncrementTransition("start_processing")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionProcessingStarted,
		Subject:   req.RequestNumber,
		AgentID:   agentID,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

// Approve marks the request ready for document generation.
func (s *Service) Approve(ctx context.Context, requestID id.RequestID, note string) (*models.Request, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanApprove() },
		func(r *models.Request) { r.ApplyApproval(note) })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.metrics.IncrementTransition("approve")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestApproved,
		Subject:   req.RequestNumber,
		AgentID:   agentID,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

// RejectResult reports a rejection and the fate of its compensating
// refund. RefundErr is how a failed refund surfaces to the caller; it is
// also audited as critical and counted, so operators see it even when the
// HTTP client ignores the body.
type RejectResult struct {
	Request         *models.Request
	RefundAttempted bool
	RefundErr       error
}

// Reject refuses the request and, when money was confirmed, attempts the
// compensating refund. The rejection stands even when the refund fails.
func (s *Service) Reject(ctx context.Context, requestID id.RequestID, reason string) (*RejectResult, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "rejection reason is required")
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanReject() },
		func(r *models.Request) { r.ApplyRejection(reason) })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.metrics.IncrementTransition("reject")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestRejected,
		Subject:   req.RequestNumber,
		AgentID:   agentID,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})

	result := &RejectResult{Request: req}
	if s.payments != nil {
		result.RefundAttempted, result.RefundErr = s.payments.Refund(ctx, req.ID)
		if result.RefundErr != nil {
			s.metrics.IncrementRefundFailure()
			s.logger.ErrorContext(ctx, "compensating refund failed",
				"request_number", req.RequestNumber,
				"error", result.RefundErr,
			)
			s.emit(ctx, audit.Event{
				Timestamp: now,
				Action:    audit.ActionRefundFailed,
				Subject:   req.RequestNumber,
				AgentID:   agentID,
				Reason:    result.RefundErr.Error(),
				RequestID: requestcontext.RequestID(ctx),
				Severity:  audit.SeverityCritical,
			})
		}
	}
	return result, nil
}

// Deliver generates the deliverable and closes the request. Generation
// failure blocks delivery; the notification afterwards is best-effort.
func (s *Service) Deliver(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	if err := s.requireWorkflowRole(ctx); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := current.CanDeliver(); err != nil {
		return nil, err
	}

	if s.documents != nil {
		if _, err := s.documents.GenerateAndStore(ctx, current); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanDeliver() },
		func(r *models.Request) { r.ApplyDelivery(now) })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	s.metrics.IncrementTransition("deliver")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestDelivered,
		Subject:   req.RequestNumber,
		AgentID:   agentID,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})

	if s.notifier != nil {
		if err := s.notifier.DeliveryReady(ctx, notify.Notification{
			TrackingNumber: req.TrackingNumber,
			RequestNumber:  req.RequestNumber,
		}); err != nil {
			s.logger.WarnContext(ctx, "delivery notification failed",
				"request_number", req.RequestNumber,
				"error", err,
			)
		}
	}
	return req, nil
}

// Cancel lets the requester withdraw a request before money is
// confirmed. A live payment attempt is abandoned alongside.
func (s *Service) Cancel(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	by := id.PersonID(requestcontext.AgentID(ctx))
	if by.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanCancel(by) },
		func(r *models.Request) { r.ApplyCancellation() })
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	if s.payments != nil {
		if _, err := s.payments.CancelForRequest(ctx, req.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to cancel pending payment",
				"request_number", req.RequestNumber,
				"error", err,
			)
		}
	}

	s.metrics.IncrementTransition("cancel")
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionRequestCancelled,
		Subject:   req.RequestNumber,
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return req, nil
}

func (s *Service) requireWorkflowRole(ctx context.Context) error {
	if !requestcontext.Role(ctx).CanProcessRequests() {
		return dErrors.New(dErrors.CodeForbidden, "role may not drive request workflow")
	}
	return nil
}

func wrapRequestErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "request store failure")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, event)
}
