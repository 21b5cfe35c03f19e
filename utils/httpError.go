package utils

import (
	"errors"
	"net/http"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPError maps an error from the error taxonomy to a status and body.
// Anything outside the taxonomy is a 500 with a generic message; the caller
// is expected to log the original error.
func HTTPError(err error) (int, ErrorResponse) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: ve.Fields}
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: ErrUnauthenticated.Error()}
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: ErrInvalidCredentials.Error()}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: ErrForbidden.Error()}
	case errors.Is(err, ErrorRecordNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest, ErrorResponse{Error: ErrConflict.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Server error"}
	}
}
