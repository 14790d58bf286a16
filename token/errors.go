package token

import "errors"

var (
	// ErrNotFound is returned when no live token exists under the requested key.
	ErrNotFound = errors.New("token not found")
	// ErrInvalidToken is returned when saving a token with missing identity fields.
	ErrInvalidToken = errors.New("token requires client id, jti, and value")
	// ErrSaveToken is returned when persisting a token to the store fails.
	ErrSaveToken = errors.New("failed to save token")
	// ErrDeleteToken is returned when removing tokens from the store fails.
	ErrDeleteToken = errors.New("failed to delete token")
)
