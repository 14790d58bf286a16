package middleware

import (
	"log/slog"
	"net/http"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/response"
)

// Recovery converts handler panics into the standard 500 envelope. The
// panic value and stack are logged; the response body stays redacted.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "handler panic",
						slog.Any("panic", rec),
						logger.Path(r.URL.Path),
						logger.CorrelationID(CorrelationIDFromContext(r.Context())),
						logger.Stack(),
					)
					_ = response.Error(w, CorrelationIDFromContext(r.Context()), response.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
