package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.TerminalService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Terminal
		// =============================================
		r.Get("/terminal", terminalHandler(svc))
		r.Get("/metrics/terminal", terminalMetricsHandler(svc))

		// =============================================
		// Authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(svc, logger))
			r.Post("/login", authLoginHandler(svc, logger))

			r.Group(func(r chi.Router) {
				r.Use(SessionAuthMiddleware(svc, logger))
				r.Post("/logout", authLogoutHandler(svc))
				r.Put("/pin", authChangePinHandler(logger))
			})
		})

		// =============================================
		// Session, operations & history (protected)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(svc, logger))

			r.Get("/session", sessionHandler())

			r.Post("/operations", stageOperationHandler(logger))
			r.Post("/operations/pin", submitPinHandler(logger))
			r.Delete("/operations/pending", cancelOperationHandler(logger))

			r.Get("/history", historyHandler(logger))
			r.Get("/history/stats", historyStatsHandler(logger))
		})
	})

	return r
}

// ============================================================
// Health & terminal info
// ============================================================

func healthzHandler(svc *service.TerminalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		start := time.Now()
		term := svc.Terminal()
		cash := domain.ServiceHealth{Name: "cash-inventory", Status: "healthy", LatencyMs: time.Since(start).Milliseconds(), LastChecked: now}
		if term.CashValue == 0 {
			cash.Status = "degraded"
		}

		services := []domain.ServiceHealth{
			{Name: "atm-terminal", Status: "healthy", LastChecked: now},
			cash,
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func terminalHandler(svc *service.TerminalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Terminal())
	}
}

func terminalMetricsHandler(svc *service.TerminalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Metrics())
	}
}
