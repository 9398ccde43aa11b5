package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/tracking"
	"etatcivil/pkg/platform/httputil"
)

// Service resolves tracking numbers to their public view.
type Service interface {
	Get(ctx context.Context, number string) (*tracking.View, error)
}

// Handler serves the public tracking endpoint. No authentication: the
// tracking number is the capability.
type Handler struct {
	tracking Service
}

func New(tracking Service) *Handler {
	return &Handler{tracking: tracking}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/tracking/{number}", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.tracking.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
