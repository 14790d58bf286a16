package verifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/blake2b"

	"github.com/achocks0/payment-gateway/core/cache"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/pkg/jwt"
	"github.com/achocks0/payment-gateway/token"
)

// renewalShare is the fraction of token life below which a renewal hint is
// emitted so the authentication layer can mint ahead of expiry.
const renewalShare = 0.1

// Config holds ingress validation settings with environment variable support.
type Config struct {
	Audience       string        `env:"TOKEN_AUDIENCE" envDefault:"payment-sapi"`
	AllowedIssuers []string      `env:"TOKEN_ALLOWED_ISSUERS" envDefault:"payment-eapi" envSeparator:","`
	TokenLifetime  time.Duration `env:"TOKEN_LIFETIME" envDefault:"1h"`
	RenewalEnabled bool          `env:"TOKEN_RENEWAL_ENABLED" envDefault:"true"`

	// NegativeTTL bounds how long a failed validation of one exact token
	// string is remembered; it is clamped to a third of the token lifetime.
	NegativeTTL      time.Duration `env:"CACHE_NEGATIVE_TTL" envDefault:"10m"`
	NegativeCapacity int           `env:"CACHE_NEGATIVE_CAPACITY" envDefault:"4096"`
}

// Result is a successful validation: the verified claims and whether the
// token is inside its renewal window.
type Result struct {
	Claims jwt.Claims
	// RenewHint is set when the token is in the last tenth of its life and
	// renewal is enabled.
	RenewHint bool
}

// Verifier gates downstream requests on token validity: signature, expiry,
// audience, issuer, permission, and an optional cache-backed revocation
// check by jti. Failed validations are negative-cached by a digest of the
// exact token string so replayed garbage is rejected without re-verifying.
type Verifier struct {
	codec       *jwt.Service
	revocations token.Store
	negative    *cache.LRUCache[[blake2b.Size256]byte, error]
	negativeTTL time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger
	clock       clockwork.Clock
	cfg         Config
}

// Option configures optional verifier collaborators.
type Option func(*Verifier)

// WithRevocationStore enables revocation checks against the token cache.
// Tokens whose jti is no longer live are rejected.
func WithRevocationStore(store token.Store) Option {
	return func(v *Verifier) {
		v.revocations = store
	}
}

// WithVerifierClock injects a clock for renewal-window tests.
func WithVerifierClock(clock clockwork.Clock) Option {
	return func(v *Verifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// New creates an ingress token verifier.
func New(cfg Config, codec *jwt.Service, m *metrics.Metrics, log *slog.Logger, opts ...Option) *Verifier {
	negativeTTL := cfg.NegativeTTL
	if maxTTL := cfg.TokenLifetime / 3; maxTTL > 0 && (negativeTTL <= 0 || negativeTTL > maxTTL) {
		negativeTTL = maxTTL
	}
	capacity := cfg.NegativeCapacity
	if capacity <= 0 {
		capacity = 4096
	}

	v := &Verifier{
		codec:       codec,
		negative:    cache.NewLRUCache[[blake2b.Size256]byte, error](capacity),
		negativeTTL: negativeTTL,
		metrics:     m,
		log:         log,
		clock:       clockwork.NewRealClock(),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates a compact token string. A non-empty requiredPermission
// must be present in the token's permission list.
func (v *Verifier) Verify(ctx context.Context, tokenString, requiredPermission string) (*Result, error) {
	if tokenString == "" {
		v.metrics.TokenValidation(false)
		return nil, ErrMissingToken
	}

	key := blake2b.Sum256([]byte(tokenString))
	if cached, ok := v.negative.Get(key); ok {
		v.metrics.TokenValidation(false)
		return nil, cached
	}

	claims, err := v.check(ctx, tokenString, requiredPermission)
	if err != nil {
		v.negative.PutWithTTL(key, err, v.negativeTTL)
		v.metrics.TokenValidation(false)
		v.log.DebugContext(ctx, "token validation failed", slog.Any("reason", err))
		return nil, err
	}

	v.metrics.TokenValidation(true)
	return &Result{Claims: *claims, RenewHint: v.renewHint(claims)}, nil
}

func (v *Verifier) check(ctx context.Context, tokenString, requiredPermission string) (*jwt.Claims, error) {
	var claims jwt.Claims
	if err := v.codec.Parse(tokenString, &claims); err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, ErrExpiredToken
		}
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims.Audience != v.cfg.Audience {
		return nil, ErrWrongAudience
	}
	if !v.issuerAllowed(claims.Issuer) {
		return nil, ErrWrongIssuer
	}
	if requiredPermission != "" && !claims.HasPermission(requiredPermission) {
		return nil, ErrPermissionDenied
	}

	if v.revocations != nil && claims.ID != "" {
		if _, err := v.revocations.GetByJTI(ctx, claims.ID); err != nil {
			if errors.Is(err, token.ErrNotFound) {
				return nil, ErrRevoked
			}
			// A store outage must not take down ingress; signature and
			// expiry checks already passed.
			v.log.WarnContext(ctx, "revocation check unavailable", slog.Any("error", err))
		}
	}
	return &claims, nil
}

func (v *Verifier) issuerAllowed(issuer string) bool {
	for _, allowed := range v.cfg.AllowedIssuers {
		if issuer == allowed {
			return true
		}
	}
	return false
}

func (v *Verifier) renewHint(claims *jwt.Claims) bool {
	if !v.cfg.RenewalEnabled || claims.ExpiresAt == 0 || claims.IssuedAt == 0 {
		return false
	}
	total := claims.ExpiresAt - claims.IssuedAt
	if total <= 0 {
		return false
	}
	remaining := claims.ExpiresAt - v.clock.Now().Unix()
	return float64(remaining)/float64(total) <= renewalShare
}
