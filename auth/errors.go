package auth

import "errors"

var (
	// ErrMissingCredentials is returned when the client id or secret is empty
	// after sanitization.
	ErrMissingCredentials = errors.New("missing client credentials")
	// ErrInvalidCredentials is returned when no active credential version
	// matches the presented secret. The message is safe to surface.
	ErrInvalidCredentials = errors.New("invalid client credentials")
	// ErrTokenInvalid is returned when a presented token fails verification.
	ErrTokenInvalid = errors.New("invalid token")
)
