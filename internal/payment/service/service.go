package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"etatcivil/internal/payment/gateway"
	paymentmetrics "etatcivil/internal/payment/metrics"
	"etatcivil/internal/payment/models"
	requestmodels "etatcivil/internal/request/models"
	tariffmodels "etatcivil/internal/tariff/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

// PaymentStore persists payments.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Payment, error)
	FindByTransactionReference(ctx context.Context, ref string) (*models.Payment, error)
	Execute(ctx context.Context, paymentID id.PaymentID,
		validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error)
}

// RequestReader exposes the request a payment settles.
type RequestReader interface {
	Get(ctx context.Context, requestID id.RequestID) (*requestmodels.Request, error)
}

// RequestSync is the workflow side the payment sub-machine drives:
// confirmation advances the request past the payment gate; an aborted
// payment sends it back to the validation queue.
type RequestSync interface {
	OnPaymentConfirmed(ctx context.Context, requestID id.RequestID) error
	OnPaymentAborted(ctx context.Context, requestID id.RequestID) error
}

// Pricer re-prices a request at initiation so the stored total is
// cross-checked against the active tariff.
type Pricer interface {
	Quote(ctx context.Context, actType id.ActType, variant id.DocumentVariant, copies int) (tariffmodels.Quote, error)
}

// AuditEmitter records payment actions.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

const defaultExpiry = 30 * time.Minute

// amountTolerance mirrors the model-level rounding tolerance for the
// cross-check between quote and stored total.
var amountTolerance = decimal.NewFromFloat(0.01)

// Service runs the payment sub-machine.
type Service struct {
	payments PaymentStore
	gateway  gateway.Gateway
	pricer   Pricer
	requests RequestReader
	workflow RequestSync
	logger   *slog.Logger
	metrics  *paymentmetrics.Metrics
	audit    AuditEmitter
	expiry   time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *paymentmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditEmitter(emitter AuditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func WithExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// New constructs a payment Service. BindWorkflow must be called before
// the service processes webhooks; the request workflow and the payment
// service reference each other, so one side binds late.
func New(payments PaymentStore, gw gateway.Gateway, pricer Pricer, requests RequestReader, opts ...Option) *Service {
	s := &Service{
		payments: payments,
		gateway:  gw,
		pricer:   pricer,
		requests: requests,
		logger:   slog.Default(),
		expiry:   defaultExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindWorkflow wires the request workflow callbacks.
func (s *Service) BindWorkflow(workflow RequestSync) {
	s.workflow = workflow
}

// InitiationInput is the payload for initiating a payment.
type InitiationInput struct {
	RequestID   id.RequestID
	Method      models.Method
	PhoneNumber string
}

// InitiationResult carries the payment and, for gateway methods, the
// provider's redirect URL.
type InitiationResult struct {
	Payment     *models.Payment
	RedirectURL string
}

// Initiate opens a payment for a request awaiting payment. A previous
// failed, expired, or cancelled attempt is re-initiated on the same row;
// a live or settled payment is a conflict.
func (s *Service) Initiate(ctx context.Context, input InitiationInput) (*InitiationResult, error) {
	req, err := s.requests.Get(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != requestmodels.StatusAwaitingPayment {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s is not awaiting payment", req.Status)
	}

	quote, err := s.pricer.Quote(ctx, req.ActType, req.Variant, req.CopyCount)
	if err != nil {
		return nil, err
	}
	if quote.TotalAmount.Sub(req.TotalAmount).Abs().GreaterThan(amountTolerance) {
		// The tariff changed between validation and payment. Force a
		// revalidation instead of charging a stale amount.
		return nil, dErrors.New(dErrors.CodeConflict, "priced amount no longer matches the validated total")
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.expiry)
	payment := &models.Payment{
		ID:                   id.NewPaymentID(),
		RequestID:            req.ID,
		BaseAmount:           quote.BaseAmount,
		StampAmount:          quote.StampAmount,
		TotalAmount:          req.TotalAmount,
		Method:               input.Method,
		Status:               models.StatusPending,
		TransactionReference: models.NewReference(now),
		PhoneNumber:          input.PhoneNumber,
		CreatedAt:            now,
		ExpiresAt:            &expiresAt,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.payments.FindByRequestID(ctx, req.ID)
	switch {
	case err == nil:
		payment, err = s.payments.Execute(ctx, existing.ID,
			func(p *models.Payment) error { return p.CanReinitiate() },
			func(p *models.Payment) {
				p.ApplyReinitiation(input.Method, input.PhoneNumber, payment.TransactionReference, &expiresAt)
			})
		if err != nil {
			return nil, err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store payment")
		}
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}

	result := &InitiationResult{Payment: payment}
	if input.Method != models.MethodCash {
		resp, err := s.gateway.InitiatePayment(ctx, gateway.InitiationRequest{
			TransactionReference: payment.TransactionReference,
			Amount:               payment.TotalAmount,
			Currency:             "XOF",
			Method:               string(input.Method),
			PhoneNumber:          input.PhoneNumber,
			Description:          "Demande " + req.RequestNumber,
		})
		if err != nil {
			// Mark the attempt failed; the request stays AWAITING_PAYMENT
			// so the citizen can retry.
			if _, execErr := s.payments.Execute(ctx, payment.ID,
				func(p *models.Payment) error { return nil },
				func(p *models.Payment) { p.ApplyFailure("INITIATION", err.Error()) }); execErr != nil {
				s.logger.ErrorContext(ctx, "failed to record initiation failure",
					"transaction_reference", payment.TransactionReference,
					"error", execErr,
				)
			}
			return nil, err
		}
		payment, err = s.payments.Execute(ctx, payment.ID,
			func(p *models.Payment) error { return nil },
			func(p *models.Payment) {
				p.ProviderReference = resp.ProviderReference
				p.Status = models.StatusInProgress
			})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record provider reference")
		}
		result.Payment = payment
		result.RedirectURL = resp.RedirectURL
	}

	s.metrics.IncrementInitiated(string(input.Method))
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionPaymentInitiated,
		Subject:   payment.TransactionReference,
		AgentID:   requestcontext.AgentID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return result, nil
}

// Confirm settles a payment by transaction reference and advances the
// request past the payment gate.
func (s *Service) Confirm(ctx context.Context, transactionRef, providerRef string) (*models.Payment, error) {
	existing, err := s.findByReference(ctx, transactionRef)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	agentID := requestcontext.AgentID(ctx)
	payment, err := s.payments.Execute(ctx, existing.ID,
		func(p *models.Payment) error { return p.CanConfirm() },
		func(p *models.Payment) { p.ApplyConfirmation(agentID, providerRef, now) })
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementConfirmed()
	if s.workflow != nil {
		if err := s.workflow.OnPaymentConfirmed(ctx, payment.RequestID); err != nil {
			// The money is in; a request that cannot advance is an
			// operational problem, not a reason to fail the webhook.
			s.logger.ErrorContext(ctx, "confirmed payment could not advance request",
				"transaction_reference", payment.TransactionReference,
				"request_id", payment.RequestID.String(),
				"error", err,
			)
		}
	}
	return payment, nil
}

// Fail records a gateway failure. Returns false without error when the
// payment is already settled; failing a terminal payment is a no-op.
func (s *Service) Fail(ctx context.Context, transactionRef, code, message string) (bool, error) {
	return s.abort(ctx, transactionRef, audit.ActionPaymentFailed, func(p *models.Payment) {
		p.ApplyFailure(code, message)
	})
}

// Expire times out a pending payment. No-op on settled payments.
func (s *Service) Expire(ctx context.Context, transactionRef string) (bool, error) {
	return s.abort(ctx, transactionRef, audit.ActionPaymentExpired, func(p *models.Payment) {
		p.ApplyExpiry()
	})
}

// CancelForRequest abandons the live payment of a request, if any. Used
// when the requester cancels the request itself, so the request is not
// reset afterwards.
func (s *Service) CancelForRequest(ctx context.Context, requestID id.RequestID) (bool, error) {
	existing, err := s.payments.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}
	if !existing.IsLive() {
		return false, nil
	}

	payment, err := s.payments.Execute(ctx, existing.ID,
		func(p *models.Payment) error {
			if !p.IsLive() {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(p *models.Payment) { p.ApplyCancellation() })
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return false, nil
		}
		return false, err
	}

	s.metrics.IncrementFailed()
	s.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    audit.ActionPaymentCancelled,
		Subject:   payment.TransactionReference,
		AgentID:   requestcontext.AgentID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	return true, nil
}

// Refund returns confirmed money for a request. The first return value
// reports whether a refund was actually attempted: a request without a
// confirmed payment yields (false, nil), a gateway failure (true, err).
func (s *Service) Refund(ctx context.Context, requestID id.RequestID) (bool, error) {
	existing, err := s.payments.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}
	if err := existing.CanRefund(); err != nil {
		return false, nil
	}

	if existing.Method != models.MethodCash {
		if err := s.gateway.RefundPayment(ctx, existing.ProviderReference, existing.TotalAmount); err != nil {
			return true, err
		}
	}

	now := requestcontext.Now(ctx)
	payment, err := s.payments.Execute(ctx, existing.ID,
		func(p *models.Payment) error { return p.CanRefund() },
		func(p *models.Payment) { p.ApplyRefund(now) })
	if err != nil {
		return true, err
	}

	s.metrics.IncrementRefunded()
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionPaymentRefunded,
		Subject:   payment.TransactionReference,
		AgentID:   requestcontext.AgentID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})
	return true, nil
}

// HasConfirmedPayment reports whether the request's money is in.
func (s *Service) HasConfirmedPayment(ctx context.Context, requestID id.RequestID) (bool, error) {
	payment, err := s.payments.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}
	return payment.Status == models.StatusConfirmed, nil
}

// GetByRequest retrieves the payment of a request.
func (s *Service) GetByRequest(ctx context.Context, requestID id.RequestID) (*models.Payment, error) {
	payment, err := s.payments.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}
	return payment, nil
}

// abort settles a live payment into a failed-family state and sends the
// request back to the validation queue.
func (s *Service) abort(ctx context.Context, transactionRef string, action audit.Action, mutate func(*models.Payment)) (bool, error) {
	existing, err := s.findByReference(ctx, transactionRef)
	if err != nil {
		return false, err
	}
	if !existing.IsLive() {
		return false, nil
	}

	payment, err := s.payments.Execute(ctx, existing.ID,
		func(p *models.Payment) error {
			if !p.IsLive() {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		mutate)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return false, nil
		}
		return false, err
	}

	s.metrics.IncrementFailed()
	s.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Subject:   payment.TransactionReference,
		AgentID:   requestcontext.AgentID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})

	if s.workflow != nil {
		if err := s.workflow.OnPaymentAborted(ctx, payment.RequestID); err != nil {
			// Only a request still awaiting payment resets; anything else
			// is fine to leave where it is.
			s.logger.InfoContext(ctx, "aborted payment did not reset request",
				"transaction_reference", payment.TransactionReference,
				"request_id", payment.RequestID.String(),
				"reason", err.Error(),
			)
		}
	}
	return true, nil
}

func (s *Service) findByReference(ctx context.Context, transactionRef string) (*models.Payment, error) {
	if transactionRef == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "transaction reference is required")
	}
	payment, err := s.payments.FindByTransactionReference(ctx, transactionRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment")
	}
	return payment, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, event)
}
