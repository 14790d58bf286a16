package rotation

import "errors"

var (
	// ErrNotFound means no rotation with the given id is registered.
	ErrNotFound = errors.New("rotation: not found")
	// ErrConflict means the client already has a non-terminal rotation.
	ErrConflict = errors.New("rotation: client already has an active rotation")
	// ErrInvalidTransition means the requested state change is not a
	// permitted edge of the lifecycle graph.
	ErrInvalidTransition = errors.New("rotation: invalid state transition")
	// ErrTerminal means the rotation already reached a terminal state.
	ErrTerminal = errors.New("rotation: rotation is terminal")
	// ErrUnknownClient means the client has no credential to rotate.
	ErrUnknownClient = errors.New("rotation: unknown client")
)
