package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// ErrorBody is the JSON envelope for every error response. RequestID echoes
// the inbound correlation id, or a generated one when the request carried
// none. Timestamp is RFC 3339 in UTC.
type ErrorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// JSON writes v as a JSON response with the given status. The body is
// marshaled before any byte is written so encoding failures surface as a
// clean 500 instead of a truncated response.
func JSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"errorCode":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Error renders err as the standard error envelope. HTTPError values keep
// their status, code, and message; anything else is redacted to a 500.
func Error(w http.ResponseWriter, requestID string, err error) error {
	httpErr := ErrInternal
	var known HTTPError
	if errors.As(err, &known) {
		httpErr = known
	}
	return JSON(w, httpErr.Status, ErrorBody{
		ErrorCode: httpErr.Code,
		Message:   httpErr.Message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
