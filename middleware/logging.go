package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/achocks0/payment-gateway/core/logger"
)

// statusWriter captures the response status for the request log line.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Logging logs one structured line per request: method, path, status,
// duration, and correlation id. Header values are never logged, so
// X-Client-Secret and Authorization stay out of the logs by construction.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "request completed",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.StatusCode(sw.status),
				logger.Elapsed(start),
				logger.CorrelationID(CorrelationIDFromContext(r.Context())),
			)
		})
	}
}
