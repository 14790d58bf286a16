package verifier

import (
	"context"
	"net/http"
	"strings"

	"github.com/achocks0/payment-gateway/core/response"
	"github.com/achocks0/payment-gateway/middleware"
	"github.com/achocks0/payment-gateway/pkg/jwt"
)

// RenewalHintHeader is set on responses when the presented token is inside
// its renewal window, so the gateway can mint ahead of expiry.
const RenewalHintHeader = "X-Token-Renewal-Suggested"

type claimsKey struct{}

// Middleware gates a route on bearer token validity, optionally requiring
// a permission. Verified claims are stored in the request context.
func (v *Verifier) Middleware(requiredPermission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := middleware.CorrelationIDFromContext(r.Context())

			tokenString, ok := bearerToken(r)
			if !ok {
				_ = response.Error(w, requestID, response.ErrAuthentication)
				return
			}

			result, err := v.Verify(r.Context(), tokenString, requiredPermission)
			if err != nil {
				_ = response.Error(w, requestID, response.ErrAuthentication)
				return
			}

			if result.RenewHint {
				w.Header().Set(RenewalHintHeader, "true")
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), result.Claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

func withClaims(ctx context.Context, claims jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the verified claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.Claims)
	return claims, ok
}
