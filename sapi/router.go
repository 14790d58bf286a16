package sapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/achocks0/payment-gateway/core/health"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/verifier"
)

// Permissions gating the payment routes.
const (
	PermissionWrite = "payments:write"
	PermissionRead  = "payments:read"
)

// RouterDeps carries the collaborators the downstream router wires
// together.
type RouterDeps struct {
	Payments *PaymentsHandler
	Verifier *verifier.Verifier
	Metrics  *metrics.Metrics
	Checks   []health.NamedCheck
	Log      *slog.Logger
}

// NewRouter assembles the downstream HTTP surface: token-gated payment
// routes plus health probes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.Route("/internal/v1/payments", func(r chi.Router) {
		r.With(deps.Verifier.Middleware(PermissionWrite)).Post("/", deps.Payments.Create)
		r.With(deps.Verifier.Middleware(PermissionRead)).Get("/{id}", deps.Payments.Get)
	})

	r.Route("/internal/v1/health", func(r chi.Router) {
		r.Get("/", health.Summary(deps.Log, deps.Checks...))
		r.Get("/liveness", health.Liveness())
		r.Get("/readiness", health.Readiness(deps.Log, deps.Checks...))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}
