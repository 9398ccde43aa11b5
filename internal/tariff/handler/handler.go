package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"etatcivil/internal/platform/middleware"
	"etatcivil/internal/tariff/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Service defines the tariff operations the handler needs.
type Service interface {
	Quote(ctx context.Context, actType id.ActType, variant id.DocumentVariant, copies int) (models.Quote, error)
	SetTariff(ctx context.Context, tariff *models.Tariff) error
}

// Handler serves the price-table admin endpoint and the public quote
// preview.
type Handler struct {
	tariffs Service
	logger  *slog.Logger
}

func New(tariffs Service, logger *slog.Logger) *Handler {
	return &Handler{tariffs: tariffs, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/tariffs/quote", h.handleQuote)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(func(role id.Role) bool { return role == id.RoleAdministrator }))
		r.Put("/tariffs", h.handleSet)
	})
}

type setTariffRequest struct {
	ActType         string `json:"act_type"`
	DocumentVariant string `json:"document_variant"`
	UnitPrice       string `json:"unit_price"`
	FiscalStamp     string `json:"fiscal_stamp"`
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body setTariffRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}

	actType, err := id.ParseActType(body.ActType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	variant, err := id.ParseDocumentVariant(body.DocumentVariant)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	unitPrice, err := decimal.NewFromString(body.UnitPrice)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unit_price must be a decimal amount"))
		return
	}
	stamp, err := decimal.NewFromString(body.FiscalStamp)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "fiscal_stamp must be a decimal amount"))
		return
	}

	tariff := models.NewTariff(actType, variant, unitPrice, stamp, requestcontext.Now(ctx))
	if err := h.tariffs.SetTariff(ctx, tariff); err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to set tariff",
				"tariff_key", tariff.Key,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quoteResponse struct {
	UnitPrice   string `json:"unit_price"`
	Copies      int    `json:"copies"`
	BaseAmount  string `json:"base_amount"`
	StampAmount string `json:"stamp_amount"`
	TotalAmount string `json:"total_amount"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actType, err := id.ParseActType(q.Get("act_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	variant, err := id.ParseDocumentVariant(q.Get("document_variant"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	copies := 1
	if raw := q.Get("copies"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "copies must be an integer"))
			return
		}
		copies = parsed
	}

	quote, err := h.tariffs.Quote(r.Context(), actType, variant, copies)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quoteResponse{
		UnitPrice:   quote.UnitPrice.StringFixed(2),
		Copies:      quote.Copies,
		BaseAmount:  quote.BaseAmount.StringFixed(2),
		StampAmount: quote.StampAmount.StringFixed(2),
		TotalAmount: quote.TotalAmount.StringFixed(2),
	})
}
