// Package httptransport assembles the HTTP surface: public tracking and
// webhook endpoints, and the authenticated agent/citizen API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	civilhandler "etatcivil/internal/civil/handler"
	paymenthandler "etatcivil/internal/payment/handler"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/platform/middleware"
	requesthandler "etatcivil/internal/request/handler"
	tariffhandler "etatcivil/internal/tariff/handler"
	trackinghandler "etatcivil/internal/tracking/handler"
	"etatcivil/pkg/platform/httputil"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator

	Civil    *civilhandler.Handler
	Requests *requesthandler.Handler
	Payments *paymenthandler.Handler
	Tariffs  *tariffhandler.Handler
	Tracking *trackinghandler.Handler

	// Health checks run on /healthz, keyed by dependency name.
	Health map[string]HealthChecker
}

// NewRouter wires the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	// Public surface: a tracking number or a transaction reference is the
	// only credential needed here.
	deps.Tracking.Register(r)
	deps.Payments.RegisterWebhook(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))
		deps.Civil.Register(r)
		deps.Requests.Register(r)
		deps.Payments.Register(r)
		deps.Tariffs.Register(r)
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": report,
		})
	}
}
