package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/sanitizer"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/pkg/jwt"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/vault"
)

// reuseMinShare is the floor on the fraction of token life that must
// remain for a cached token to be reused; Config.RenewalThreshold sets an
// absolute near-expiry window on top of it.
const reuseMinShare = 0.2

// defaultPermissions apply when a credential record carries no explicit
// permission set.
var defaultPermissions = []string{"payments:read", "payments:write"}

// Headers are the sanitized inbound credential headers.
type Headers struct {
	ClientID      string
	Secret        string
	CorrelationID string
}

// Service turns header credentials into cached signed tokens. Minting is
// deduplicated per client id: concurrent callers for the same client share
// one validator call and receive the same token.
type Service struct {
	validator *Validator
	codec     *jwt.Service
	store     token.Store
	metrics   *metrics.Metrics
	log       *slog.Logger
	clock     clockwork.Clock
	cfg       Config

	mint singleflight.Group

	// issuedHook, when set, observes every minted token. Failures inside
	// the hook are its own concern; minting never waits on it.
	issuedHook func(ctx context.Context, t *token.Token)
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithClock injects a clock for deterministic expiry tests.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIssuedHook registers an observer for minted tokens, used to feed the
// audit trail.
func WithIssuedHook(hook func(ctx context.Context, t *token.Token)) ServiceOption {
	return func(s *Service) {
		s.issuedHook = hook
	}
}

// NewService creates the authentication service.
func NewService(cfg Config, validator *Validator, codec *jwt.Service, store token.Store, m *metrics.Metrics, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		validator: validator,
		codec:     codec,
		store:     store,
		metrics:   m,
		log:       log,
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates header credentials and returns a signed token,
// reusing the cached token while it has comfortable life remaining.
func (s *Service) Authenticate(ctx context.Context, h Headers) (*token.Token, error) {
	start := s.clock.Now()

	clientID := sanitizer.Header(h.ClientID)
	secret := sanitizer.Header(h.Secret)
	if clientID == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	if cached := s.cachedToken(ctx, clientID); cached != nil {
		s.metrics.CacheHit()
		s.metrics.AuthAttempt(clientID, true, false, s.clock.Now().Sub(start))
		return cached, nil
	}
	s.metrics.CacheMiss()

	type mintResult struct {
		token    *token.Token
		degraded bool
	}

	result, err, _ := s.mint.Do(clientID, func() (any, error) {
		// A racing caller may have finished minting while this one waited
		// on the flight group.
		if cached := s.cachedToken(ctx, clientID); cached != nil {
			return mintResult{token: cached}, nil
		}

		match, err := s.validator.Verify(ctx, clientID, secret)
		if err != nil {
			if errors.Is(err, vault.ErrUnavailable) {
				s.metrics.VaultAvailable(false)
			}
			return nil, err
		}
		// A degraded match means the fallback cache answered for the vault.
		s.metrics.VaultAvailable(!match.Degraded)

		minted, err := s.mintToken(ctx, clientID, match)
		if err != nil {
			return nil, err
		}
		return mintResult{token: minted, degraded: match.Degraded}, nil
	})
	if err != nil {
		s.metrics.AuthAttempt(clientID, false, false, s.clock.Now().Sub(start))
		s.log.WarnContext(ctx, "authentication failed",
			logger.ClientID(clientID), logger.CorrelationID(h.CorrelationID), logger.Error(err))
		return nil, err
	}

	minted := result.(mintResult)
	s.metrics.AuthAttempt(clientID, true, minted.degraded, s.clock.Now().Sub(start))
	return minted.token, nil
}

// ValidateToken reports whether a compact token string carries a valid
// signature and unexpired claims.
func (s *Service) ValidateToken(tokenString string) bool {
	var claims jwt.Claims
	return s.codec.Parse(tokenString, &claims) == nil
}

// Refresh exchanges a still-valid token for a fresh one with the same
// subject and permissions. The old token is revoked by jti.
func (s *Service) Refresh(ctx context.Context, oldToken string) (*token.Token, error) {
	var claims jwt.Claims
	if err := s.codec.Parse(oldToken, &claims); err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	minted, err := s.sign(ctx, claims.Subject, claims.Permissions)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" {
		if err := s.store.DeleteByJTI(ctx, claims.ID); err != nil {
			s.log.WarnContext(ctx, "failed to revoke refreshed token",
				logger.ClientID(claims.Subject), logger.Error(err))
		}
	}
	return minted, nil
}

// Revoke invalidates every cached token of the client, returning how many
// were dropped.
func (s *Service) Revoke(ctx context.Context, clientID string) (int64, error) {
	return s.store.DeleteByClientID(ctx, clientID)
}

func (s *Service) cachedToken(ctx context.Context, clientID string) *token.Token {
	cached, err := s.store.GetByClientID(ctx, clientID)
	if err != nil {
		return nil
	}
	now := s.clock.Now()
	if cached.RemainingShare(now) <= reuseMinShare {
		return nil
	}
	if s.cfg.RenewalThreshold > 0 && cached.TTL(now) <= s.cfg.RenewalThreshold {
		return nil
	}
	return cached
}

func (s *Service) mintToken(ctx context.Context, clientID string, match *Match) (*token.Token, error) {
	permissions := match.Credential.Permissions
	if len(permissions) == 0 {
		permissions = defaultPermissions
	}
	return s.sign(ctx, clientID, permissions)
}

func (s *Service) sign(ctx context.Context, clientID string, permissions []string) (*token.Token, error) {
	now := s.clock.Now()
	jti := uuid.New().String()

	signed, err := s.codec.Generate(jwt.Claims{
		Subject:     clientID,
		Issuer:      s.cfg.Issuer,
		Audience:    s.cfg.Audience,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(s.cfg.TokenLifetime).Unix(),
		ID:          jti,
		Permissions: permissions,
	})
	if err != nil {
		return nil, err
	}

	minted := &token.Token{
		ClientID:    clientID,
		Value:       signed,
		JTI:         jti,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.TokenLifetime),
		Permissions: permissions,
	}
	if err := s.store.Save(ctx, minted); err != nil {
		return nil, err
	}
	if s.issuedHook != nil {
		s.issuedHook(ctx, minted)
	}
	return minted, nil
}
