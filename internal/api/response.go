// Package api holds the JSON envelope shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/signmaker/internal/domain"
)

const msgInternal = "internal server error"

// ErrorResponse is the body of every non-streaming failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusByCode maps domain error codes to HTTP statuses. Unlisted codes are
// reported as 500.
var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeInvalidOperation: http.StatusBadRequest,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeQuotaExhausted:   http.StatusPaymentRequired,
	domain.ErrCodeForbidden:        http.StatusForbidden,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeAlreadyExists:    http.StatusConflict,
	domain.ErrCodeRateLimited:      http.StatusTooManyRequests,
}

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := statusByCode[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the user-facing message of a domain error. The wrapped
// cause is never exposed and other errors become a generic 500.
func HandleError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	Error(w, StatusOf(err), domainErr.Message)
}
