package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/achocks0/payment-gateway/core/sanitizer"
)

// CorrelationHeader carries the request correlation id end to end: vendor
// to gateway, gateway to downstream, and back on every response.
const CorrelationHeader = "X-Correlation-ID"

type correlationIDKey struct{}

// CorrelationID accepts an inbound correlation id or generates one, stores
// it in the request context, and echoes it on the response. The inbound
// value is sanitized before use; a value that sanitizes to nothing is
// replaced.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizer.Header(r.Header.Get(CorrelationHeader))
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}

// WithCorrelationID returns a context carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id, or "" when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
