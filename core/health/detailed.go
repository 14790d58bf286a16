package health

import (
	"net/http"
	"time"

	"github.com/achocks0/payment-gateway/core/response"
)

// ComponentStatus reports one dependency in the detailed health view.
type ComponentStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// DetailedStatus is the body of the detailed health endpoint.
type DetailedStatus struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

// Detailed runs every check and reports per-dependency status and latency.
// The endpoint is operator-facing; error strings are included verbatim.
func Detailed(checks ...NamedCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := DetailedStatus{
			Status:     "UP",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Components: make(map[string]ComponentStatus, len(checks)),
		}

		status := http.StatusOK
		for _, c := range checks {
			start := time.Now()
			err := c.Check(r.Context())
			component := ComponentStatus{
				Status:    "UP",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				component.Status = "DOWN"
				component.Error = err.Error()
				body.Status = "DOWN"
				status = http.StatusServiceUnavailable
			}
			body.Components[c.Name] = component
		}

		_ = response.JSON(w, status, body)
	}
}
