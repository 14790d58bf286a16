package vault

import "errors"

var (
	// ErrNotFound is returned when no credential exists for the requested
	// client or version. It is never retried.
	ErrNotFound = errors.New("credential not found")
	// ErrUnavailable is returned when the vault cannot be reached or
	// responds with a server error. It is the only retryable failure.
	ErrUnavailable = errors.New("vault unavailable")
	// ErrPermission is returned when the vault rejects the client's token.
	ErrPermission = errors.New("vault permission denied")
	// ErrInvalidCredential is returned when a record is missing identity fields.
	ErrInvalidCredential = errors.New("credential requires client id, version, and hashed secret")
	// ErrVersionExists is returned when storing a new version that already exists.
	ErrVersionExists = errors.New("credential version already exists")
)
