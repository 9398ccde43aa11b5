package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/request/models"
	"etatcivil/internal/request/service"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Service defines the request workflow operations the handler needs.
type Service interface {
	Create(ctx context.Context, input models.CreationInput) (*models.Request, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	ValidatePreliminary(ctx context.Context, requestID id.RequestID, note string, waiveFee bool) (*models.Request, error)
	ConfirmPayment(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	StartProcessing(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Approve(ctx context.Context, requestID id.RequestID, note string) (*models.Request, error)
	Reject(ctx context.Context, requestID id.RequestID, reason string) (*service.RejectResult, error)
	Deliver(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Cancel(ctx context.Context, requestID id.RequestID) (*models.Request, error)
}

// Handler serves the request workflow endpoints.
type Handler struct {
	requests Service
	logger   *slog.Logger
}

func New(requests Service, logger *slog.Logger) *Handler {
	return &Handler{requests: requests, logger: logger}
}

// Register mounts the request routes. Creation and cancellation are open
// to any authenticated caller; workflow transitions are role-checked in
// the service.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requests", h.handleCreate)
	r.Get("/requests/{id}", h.handleGet)
	r.Post("/requests/{id}/validate", h.handleValidate)
	r.Post("/requests/{id}/confirm-payment", h.handleConfirmPayment)
	r.Post("/requests/{id}/process", h.handleProcess)
	r.Post("/requests/{id}/approve", h.handleApprove)
	r.Post("/requests/{id}/reject", h.handleReject)
	r.Post("/requests/{id}/deliver", h.handleDeliver)
	r.Post("/requests/{id}/cancel", h.handleCancel)
}

type createRequest struct {
	ActID           string `json:"act_id"`
	ActType         string `json:"act_type"`
	DocumentVariant string `json:"document_variant"`
	CopyCount       int    `json:"copy_count"`
	CommuneID       string `json:"commune_id"`
	WithdrawalMode  string `json:"withdrawal_mode"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
}

type requestResponse struct {
	ID              string     `json:"id"`
	RequestNumber   string     `json:"request_number"`
	TrackingNumber  string     `json:"tracking_number"`
	ActID           string     `json:"act_id"`
	ActType         string     `json:"act_type"`
	DocumentVariant string     `json:"document_variant"`
	CopyCount       int        `json:"copy_count"`
	Status          string     `json:"status"`
	WithdrawalMode  string     `json:"withdrawal_mode"`
	DeliveryAddress string     `json:"delivery_address,omitempty"`
	TotalAmount     *string    `json:"total_amount,omitempty"`
	AgentNote       string     `json:"agent_note,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

func toRequestResponse(req *models.Request) requestResponse {
	resp := requestResponse{
		ID:              req.ID.String(),
		RequestNumber:   req.RequestNumber,
		TrackingNumber:  req.TrackingNumber,
		ActID:           req.ActID.String(),
		ActType:         req.ActType.String(),
		DocumentVariant: req.Variant.String(),
		CopyCount:       req.CopyCount,
		Status:          string(req.Status),
		WithdrawalMode:  string(req.Withdrawal),
		DeliveryAddress: req.DeliveryAddress,
		AgentNote:       req.AgentNote,
		RejectionReason: req.RejectionReason,
		CreatedAt:       req.CreatedAt,
		ValidatedAt:     req.ValidatedAt,
		DeliveredAt:     req.DeliveredAt,
	}
	if req.AmountComputed {
		amount := req.TotalAmount.StringFixed(2)
		resp.TotalAmount = &amount
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}

	input, err := h.creationInput(ctx, body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.requests.Create(ctx, input)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(req))
}

func (h *Handler) creationInput(ctx context.Context, body createRequest) (models.CreationInput, error) {
	actID, err := id.ParseActID(body.ActID)
	if err != nil {
		return models.CreationInput{}, err
	}
	actType, err := id.ParseActType(body.ActType)
	if err != nil {
		return models.CreationInput{}, err
	}
	variant, err := id.ParseDocumentVariant(body.DocumentVariant)
	if err != nil {
		return models.CreationInput{}, err
	}
	communeID, err := id.ParseCommuneID(body.CommuneID)
	if err != nil {
		return models.CreationInput{}, err
	}
	withdrawal, err := models.ParseWithdrawal(body.WithdrawalMode)
	if err != nil {
		return models.CreationInput{}, err
	}

	return models.CreationInput{
		RequesterID:     id.PersonID(requestcontext.AgentID(ctx)),
		ActID:           actID,
		ActType:         actType,
		Variant:         variant,
		CopyCount:       body.CopyCount,
		CommuneID:       communeID,
		Withdrawal:      withdrawal,
		DeliveryAddress: body.DeliveryAddress,
	}, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

type noteRequest struct {
	Note string `json:"note,omitempty"`
}

type validateRequest struct {
	Note         string `json:"note,omitempty"`
	WaivePayment bool   `json:"waive_payment,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		var body validateRequest
		if r.ContentLength > 0 {
			if err := httputil.DecodeJSON(r, &body); err != nil {
				return nil, err
			}
		}
		return h.requests.ValidatePreliminary(ctx, requestID, body.Note, body.WaivePayment)
	})
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		return h.requests.ConfirmPayment(ctx, requestID)
	})
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		return h.requests.StartProcessing(ctx, requestID)
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		var body noteRequest
		if r.ContentLength > 0 {
			if err := httputil.DecodeJSON(r, &body); err != nil {
				return nil, err
			}
		}
		return h.requests.Approve(ctx, requestID, body.Note)
	})
}

type rejectResponse struct {
	Request         requestResponse `json:"request"`
	RefundAttempted bool            `json:"refund_attempted"`
	RefundError     string          `json:"refund_error,omitempty"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body reasonRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.requests.Reject(ctx, requestID, body.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to reject request", err)
		return
	}

	resp := rejectResponse{
		Request:         toRequestResponse(result.Request),
		RefundAttempted: result.RefundAttempted,
	}
	if result.RefundErr != nil {
		resp.RefundError = result.RefundErr.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		return h.requests.Deliver(ctx, requestID)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
		return h.requests.Cancel(ctx, requestID)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, requestID id.RequestID) (*models.Request, error)) {

	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := op(ctx, requestID)
	if err != nil {
		h.writeServiceError(ctx, w, "request transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
