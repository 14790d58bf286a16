package response

import "net/http"

// HTTPError is a structured error with an HTTP status and a machine-readable
// code. It is a value type; the With* methods return modified copies so the
// predefined errors stay immutable.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"errorCode"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for the error.
func (e HTTPError) StatusCode() int {
	return e.Status
}

// WithMessage returns a copy of the error with a custom message.
func (e HTTPError) WithMessage(message string) HTTPError {
	e.Message = message
	return e
}

// Predefined errors covering the gateway's externally visible failure kinds.
// The codes are wire contract with existing vendors and must not change.
var (
	ErrAuthentication = HTTPError{
		Status:  http.StatusUnauthorized,
		Code:    "AUTH_ERROR",
		Message: "authentication failed",
	}
	ErrVaultUnavailable = HTTPError{
		Status:  http.StatusServiceUnavailable,
		Code:    "CONJUR_ERROR",
		Message: "credential service temporarily unavailable",
	}
	ErrMissingHeader = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "MISSING_HEADER",
		Message: "required header is missing",
	}
	ErrNotFound = HTTPError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
	ErrRotationConflict = HTTPError{
		Status:  http.StatusConflict,
		Code:    "ROTATION_CONFLICT",
		Message: "another rotation is already in progress for this client",
	}
	ErrInvalidTransition = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_TRANSITION",
		Message: "requested rotation state transition is not permitted",
	}
	ErrBadRequest = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: "invalid request",
	}
	ErrTooManyRequests = HTTPError{
		Status:  http.StatusTooManyRequests,
		Code:    "RATE_LIMITED",
		Message: "too many requests",
	}
	ErrInternal = HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	}
)
