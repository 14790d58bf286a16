package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/core/sanitizer"
	"github.com/achocks0/payment-gateway/pkg/ratelimiter"
)

// RateLimitKey derives the bucket key for a request.
type RateLimitKey func(r *http.Request) string

// ClientKey keys buckets by client id and remote address, so one stuffed
// vendor id cannot exhaust the budget of a legitimate caller elsewhere.
func ClientKey(r *http.Request) string {
	clientID := sanitizer.Header(r.Header.Get("X-Client-ID"))
	if clientID == "" {
		clientID = "anonymous"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return clientID + ":" + host
}

// RateLimit denies requests over the limit with a 429 envelope and a
// Retry-After header. Limiter errors fail open: throttling is protection,
// not a correctness gate.
func RateLimit(limiter ratelimiter.RateLimiter, key RateLimitKey) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			if result.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			} else {
				w.Header().Set("X-RateLimit-Remaining", "0")
			}

			if !result.Allowed() {
				retryAfter := int(result.RetryAfter().Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				_ = response.Error(w, CorrelationIDFromContext(r.Context()), response.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
