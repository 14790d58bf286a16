package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/response"
)

// Check verifies a single dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// NamedCheck pairs a dependency name with its check for detailed reporting.
type NamedCheck struct {
	Name  string
	Check Check
}

// Named builds a NamedCheck.
func Named(name string, check Check) NamedCheck {
	return NamedCheck{Name: name, Check: check}
}

// Liveness indicates the process is running. Always 200 "ALIVE", no
// dependency checks.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// Readiness verifies all dependencies are functioning. Returns "READY" when
// every check passes, 503 when any fails.
func Readiness(log *slog.Logger, checks ...NamedCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed",
					logger.Component(c.Name), logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("READY"))
	}
}

// Status is the summary body served on the basic health endpoint.
type Status struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Summary reports overall service health as JSON: "UP" when all checks
// pass, otherwise "DOWN" with a 503.
func Summary(log *slog.Logger, checks ...NamedCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := Status{Status: "UP", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "health check failed",
					logger.Component(c.Name), logger.Error(err))
				status = http.StatusServiceUnavailable
				body.Status = "DOWN"
				break
			}
		}
		_ = response.JSON(w, status, body)
	}
}
