package verifier

import "errors"

var (
	// ErrMissingToken is returned when no bearer token is presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed tokens or bad signatures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongAudience is returned when the aud claim does not match.
	ErrWrongAudience = errors.New("token audience mismatch")
	// ErrWrongIssuer is returned when the iss claim is not an allowed issuer.
	ErrWrongIssuer = errors.New("token issuer not allowed")
	// ErrPermissionDenied is returned when a required permission is absent.
	ErrPermissionDenied = errors.New("token lacks required permission")
	// ErrRevoked is returned when the token's jti is no longer live.
	ErrRevoked = errors.New("token revoked")
)
