// Package http wires the service's HTTP API.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shorelinehq/oysterly/pkg/health"
	"github.com/shorelinehq/oysterly/pkg/middleware"
)

// RouterConfig carries the dependencies the router mounts.
type RouterConfig struct {
	ServiceName   string
	Logger        *slog.Logger
	Reviews       *ReviewHandler
	Profiles      *ProfileHandler
	Health        *health.Handler
	TokenValidate middleware.TokenValidator
	CORS          middleware.CORSConfig
	RateLimit     middleware.RateLimitConfig
}

// NewRouter builds the chi router with the full middleware stack. Review
// writes require authentication and are rate limited; profile and review
// reads are public.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(ContentTypeJSON)

	r.Get("/healthz", cfg.Health.LivenessHandler())
	r.Get("/readyz", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestLogger(cfg.Logger))

			r.Get("/subjects/{subjectID}/reviews", cfg.Reviews.ListBySubject)
			r.Get("/reviews/{reviewID}", cfg.Reviews.Get)
			r.Get("/users/{userID}/profile", cfg.Profiles.GetProfile)
			r.Get("/users/{userID}/friends", cfg.Profiles.GetFriends)
		})

		// Authenticated writes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.TokenValidate))
			r.Use(middleware.RequestLogger(cfg.Logger))
			r.Use(limiter.Middleware)

			r.Post("/subjects/{subjectID}/reviews", cfg.Reviews.Submit)
			r.Delete("/subjects/{subjectID}/reviews/flow", cfg.Reviews.CancelFlow)
			r.Put("/reviews/{reviewID}", cfg.Reviews.Update)
		})
	})

	return r
}
