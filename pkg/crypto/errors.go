package crypto

import "errors"

var (
	// ErrRandomSource is returned when the system entropy source fails.
	ErrRandomSource = errors.New("failed to read random source")
	// ErrInvalidLength is returned when a requested length is not positive.
	ErrInvalidLength = errors.New("length must be positive")
	// ErrMalformedHash is returned when a stored credential hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed credential hash")
)
