package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/civil/models"
	"etatcivil/internal/platform/middleware"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Service defines the act registration operations the handler needs.
type Service interface {
	RegisterAct(ctx context.Context, input models.RegistrationInput) (*models.Act, error)
	GetAct(ctx context.Context, actID id.ActID) (*models.Act, error)
	GetActByNumber(ctx context.Context, number string) (*models.Act, error)
}

// Handler serves the civil act endpoints.
type Handler struct {
	civil  Service
	logger *slog.Logger
}

func New(civil Service, logger *slog.Logger) *Handler {
	return &Handler{civil: civil, logger: logger}
}

// Register mounts the act routes. All of them require an agent role that
// may register acts.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(id.Role.CanRegisterActs))
		r.Post("/acts/births", h.handleRegister(id.ActBirth))
		r.Post("/acts/marriages", h.handleRegister(id.ActMarriage))
		r.Post("/acts/deaths", h.handleRegister(id.ActDeath))
	})
	r.Get("/acts/{id}", h.handleGet)
	r.Get("/acts/by-number/{number}", h.handleGetByNumber)
}

type registerActRequest struct {
	CommuneID    string `json:"commune_id"`
	SubjectName  string `json:"subject_name"`
	SubjectGiven string `json:"subject_given"`
	SpouseName   string `json:"spouse_name,omitempty"`
	SpouseGiven  string `json:"spouse_given,omitempty"`
	EventDate    string `json:"event_date"`
}

type actResponse struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ActNumber      string    `json:"act_number"`
	RegistryNumber string    `json:"registry_number"`
	RegistryPage   string    `json:"registry_page"`
	CommuneID      string    `json:"commune_id"`
	SubjectName    string    `json:"subject_name"`
	SubjectGiven   string    `json:"subject_given"`
	SpouseName     string    `json:"spouse_name,omitempty"`
	SpouseGiven    string    `json:"spouse_given,omitempty"`
	EventDate      string    `json:"event_date"`
	DegradedNumber bool      `json:"degraded_number"`
	CreatedAt      time.Time `json:"created_at"`
}

func toActResponse(act *models.Act) actResponse {
	return actResponse{
		ID:             act.ID.String(),
		Type:           act.Type.String(),
		ActNumber:      act.ActNumber,
		RegistryNumber: act.RegistryNumber,
		RegistryPage:   act.RegistryPage,
		CommuneID:      act.CommuneID.String(),
		SubjectName:    act.SubjectName,
		SubjectGiven:   act.SubjectGiven,
		SpouseName:     act.SpouseName,
		SpouseGiven:    act.SpouseGiven,
		EventDate:      act.EventDate.Format("2006-01-02"),
		DegradedNumber: act.DegradedNumber,
		CreatedAt:      act.CreatedAt,
	}
}

func (h *Handler) handleRegister(actType id.ActType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body registerActRequest
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.WriteError(w, err)
			return
		}

		communeID, err := id.ParseCommuneID(body.CommuneID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		eventDate, err := time.Parse("2006-01-02", body.EventDate)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "event_date must be YYYY-MM-DD"))
			return
		}

		act, err := h.civil.RegisterAct(ctx, models.RegistrationInput{
			Type:         actType,
			CommuneID:    communeID,
			SubjectName:  body.SubjectName,
			SubjectGiven: body.SubjectGiven,
			SpouseName:   body.SpouseName,
			SpouseGiven:  body.SpouseGiven,
			EventDate:    eventDate,
		})
		if err != nil {
			if dErrors.Is(err, dErrors.CodeInternal) {
				h.logger.ErrorContext(ctx, "failed to register act",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
			httputil.WriteError(w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusCreated, toActResponse(act))
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actID, err := id.ParseActID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	act, err := h.civil.GetAct(r.Context(), actID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActResponse(act))
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	act, err := h.civil.GetActByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActResponse(act))
}
