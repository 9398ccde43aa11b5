package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/payment/models"
	"etatcivil/internal/payment/service"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Service defines the payment operations the handler needs.
type Service interface {
	Initiate(ctx context.Context, input service.InitiationInput) (*service.InitiationResult, error)
	Confirm(ctx context.Context, transactionRef, providerRef string) (*models.Payment, error)
	Fail(ctx context.Context, transactionRef, code, message string) (bool, error)
	Expire(ctx context.Context, transactionRef string) (bool, error)
	GetByRequest(ctx context.Context, requestID id.RequestID) (*models.Payment, error)
}

// Handler serves the payment endpoints. Register mounts the authenticated
// initiation route; RegisterWebhook mounts the gateway callback, which
// authenticates by knowing the transaction reference, not by bearer token.
type Handler struct {
	payments Service
	logger   *slog.Logger
}

func New(payments Service, logger *slog.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/payments", h.handleInitiate)
	r.Get("/requests/{id}/payment", h.handleGetByRequest)
}

func (h *Handler) RegisterWebhook(r chi.Router) {
	r.Post("/payments/webhook", h.handleWebhook)
}

type initiateRequest struct {
	RequestID   string `json:"request_id"`
	Method      string `json:"method"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type paymentResponse struct {
	ID                   string     `json:"id"`
	RequestID            string     `json:"request_id"`
	TransactionReference string     `json:"transaction_reference"`
	Status               string     `json:"status"`
	Method               string     `json:"method"`
	BaseAmount           string     `json:"base_amount"`
	StampAmount          string     `json:"stamp_amount"`
	TotalAmount          string     `json:"total_amount"`
	RedirectURL          string     `json:"redirect_url,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
}

func toPaymentResponse(p *models.Payment, redirectURL string) paymentResponse {
	return paymentResponse{
		ID:                   p.ID.String(),
		RequestID:            p.RequestID.String(),
		TransactionReference: p.TransactionReference,
		Status:               string(p.Status),
		Method:               string(p.Method),
		BaseAmount:           p.BaseAmount.StringFixed(2),
		StampAmount:          p.StampAmount.StringFixed(2),
		TotalAmount:          p.TotalAmount.StringFixed(2),
		RedirectURL:          redirectURL,
		ExpiresAt:            p.ExpiresAt,
		ConfirmedAt:          p.ConfirmedAt,
	}
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body initiateRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}

	requestID, err := id.ParseRequestID(body.RequestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	method, err := models.ParseMethod(body.Method)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.payments.Initiate(ctx, service.InitiationInput{
		RequestID:   requestID,
		Method:      method,
		PhoneNumber: body.PhoneNumber,
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
			h.logger.ErrorContext(ctx, "failed to initiate payment",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(result.Payment, result.RedirectURL))
}

func (h *Handler) handleGetByRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payment, err := h.payments.GetByRequest(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(payment, ""))
}

// webhookRequest is the gateway's callback payload.
type webhookRequest struct {
	TransactionID string `json:"transaction_id"`
	PaymentToken  string `json:"payment_token,omitempty"`
	Status        string `json:"status"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// handleWebhook applies the gateway's verdict. The endpoint is idempotent:
// replayed notifications for settled payments return 200 without effect.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body webhookRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.TransactionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "transaction_id is required"))
		return
	}

	var err error
	switch strings.ToUpper(body.Status) {
	case "ACCEPTED", "SUCCESS":
		_, err = h.payments.Confirm(ctx, body.TransactionID, body.PaymentToken)
		// A stale success notification for an already-settled payment is a
		// replay, not a failure.
		if err != nil && dErrors.Is(err, dErrors.CodeInvariantViolation) {
			err = nil
		}
	case "REFUSED", "FAILED":
		_, err = h.payments.Fail(ctx, body.TransactionID, body.ErrorCode, body.ErrorMessage)
	case "EXPIRED":
		_, err = h.payments.Expire(ctx, body.TransactionID)
	default:
		err = dErrors.Newf(dErrors.CodeBadRequest, "unknown payment status %q", body.Status)
	}
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
			h.logger.ErrorContext(ctx, "failed to apply payment webhook",
				"transaction_reference", body.TransactionID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
