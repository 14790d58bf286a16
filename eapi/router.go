package eapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/achocks0/payment-gateway/core/health"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/pkg/ratelimiter"
)

// RouterDeps carries the collaborators the gateway router wires together.
type RouterDeps struct {
	Payments  *PaymentsHandler
	Rotations *RotationsHandler
	Limiter   ratelimiter.RateLimiter
	Metrics   *metrics.Metrics
	Checks    []health.NamedCheck
	Log       *slog.Logger
}

// NewRouter assembles the gateway HTTP surface: payments, rotation
// control, health probes, and the metrics endpoint.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(middleware.RateLimit(deps.Limiter, middleware.ClientKey))
			}
			r.Post("/", deps.Payments.Create)
			r.Get("/{id}", deps.Payments.Get)
		})

		r.Route("/rotations", func(r chi.Router) {
			r.Post("/initiate", deps.Rotations.Initiate)
			r.Get("/active", deps.Rotations.Active)
			r.Get("/client/{clientId}", deps.Rotations.ByClient)
			r.Get("/{id}", deps.Rotations.Get)
			r.Put("/{id}/advance", deps.Rotations.Advance)
			r.Put("/{id}/complete", deps.Rotations.Complete)
			r.Delete("/{id}", deps.Rotations.Cancel)
		})

		r.Route("/health", func(r chi.Router) {
			r.Get("/", health.Summary(deps.Log, deps.Checks...))
			r.Get("/detailed", health.Detailed(deps.Checks...))
			r.Get("/liveness", health.Liveness())
			r.Get("/readiness", health.Readiness(deps.Log, deps.Checks...))
		})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}
