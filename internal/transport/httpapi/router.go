package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payrail/payrail/internal/transport/httpapi/handler"
	"github.com/payrail/payrail/internal/transport/httpapi/middleware"
	"github.com/payrail/payrail/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger         *logger.Logger
	AllowedOrigins []string
	PayoutHandler  *handler.PayoutHandler
	EventHandler   *handler.EventHandler
	AccountHandler *handler.AccountHandler
	HealthHandler  *handler.HealthHandler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // 100 req/s with burst of 20

	// Health and metrics endpoints
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.PayoutHandler != nil {
			r.Post("/payouts", cfg.PayoutHandler.CreatePayout)
			r.Get("/payouts", cfg.PayoutHandler.ListPayouts)
			r.Get("/payouts/{id}", cfg.PayoutHandler.GetPayout)
			r.Post("/payouts/{id}/cancel", cfg.PayoutHandler.CancelPayout)
		}

		if cfg.EventHandler != nil {
			r.Get("/events", cfg.EventHandler.ListEvents)
			r.Get("/events/{aggregate_type}/{aggregate_id}", cfg.EventHandler.ListAggregateEvents)
		}

		if cfg.AccountHandler != nil {
			r.Get("/accounts/{code}/balance", cfg.AccountHandler.GetBalance)
			r.Post("/accounts/{code}/reconcile", cfg.AccountHandler.ReconcileBalance)
			r.Get("/transactions/{id}", cfg.AccountHandler.GetTransaction)
		}
	})

	return r
}
