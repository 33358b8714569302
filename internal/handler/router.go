package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/port"
	"github.com/boddenberg/bazchat-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// identity and chat may be nil (ops endpoints only), which is what the
// health tests rely on.
func NewRouter(
	identity *service.IdentityService,
	chat *service.ChatService,
	dashboard *service.DashboardService,
	uploads *service.UploadService,
	db port.HealthChecker,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(db, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/chat", chatMetricsHandler(metrics))

		if identity == nil || chat == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "storefront unavailable: database not configured")
			}))
			return
		}

		// =============================================
		// Auth
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(identity, logger))
			r.Post("/login", authLoginHandler(identity, logger))
		})

		// =============================================
		// Public storefront (no auth)
		// =============================================
		r.Route("/public/profiles/{slugOrId}", func(r chi.Router) {
			r.Get("/", publicProfileHandler(identity, logger))
			r.Get("/sessions/{sessionId}/messages", customerMessagesHandler(chat, logger))
			r.Post("/sessions/{sessionId}/messages", customerSendHandler(chat, logger))
		})

		// =============================================
		// Owner (Bearer JWT)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(identity, logger))

			r.Get("/me/profile", getProfileHandler(identity, logger))
			r.Put("/me/profile", saveProfileHandler(identity, logger))
			if dashboard != nil {
				r.Get("/me/dashboard", dashboardHandler(dashboard, logger))
			}
			r.Get("/me/sessions", listSessionsHandler(chat, logger))
			r.Get("/me/sessions/{sessionId}/messages", ownerMessagesHandler(chat, logger))
			r.Post("/me/sessions/{sessionId}/read", markReadHandler(chat, logger))
			r.Post("/me/sessions/{sessionId}/reply", replyHandler(chat, logger))
			if uploads != nil {
				r.Post("/uploads/image", uploadImageHandler(uploads, logger))
			}
		})
	})

	return r
}

// ============================================================
// Health & Metrics
// ============================================================

func healthzHandler(db port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bazchat-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			sh := domain.ServiceHealth{
				Name:        "database",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("healthz: database ping failed", zap.Error(err))
				sh.Status = "unhealthy"
				sh.Error = err.Error()
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		status := http.StatusOK
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				status = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, status, domain.HealthStatus{
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

func chatMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.ChatSnapshot())
	}
}
