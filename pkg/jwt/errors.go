package jwt

import "errors"

var (
	// ErrMissingSigningKey is returned when a service is constructed without a key.
	ErrMissingSigningKey = errors.New("missing signing key")
	// ErrMissingClaims is returned when Generate or Parse receives nil claims.
	ErrMissingClaims = errors.New("missing claims")
	// ErrInvalidToken is returned for structurally malformed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSignature is returned when the signature segment does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrUnexpectedSigningMethod is returned when the header algorithm is not HS256.
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	// ErrExpiredToken is returned when the exp claim is at or before the current time.
	ErrExpiredToken = errors.New("token has expired")
	// ErrTokenNotYetValid is returned when the nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
)
