package domain

import (
	"errors"
	"fmt"
)

// DomainError carries a machine code and a message safe to show callers.
// The wrapped cause is for logs only.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so a
// sentinel still matches after a cause has been attached to a copy of it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeQuotaExhausted   = "QUOTA_EXHAUSTED"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrInvalidConfidence      = NewDomainError(ErrCodeValidation, "invalid confidence level")
	ErrInvalidKnowledgeStatus = NewDomainError(ErrCodeValidation, "invalid knowledge status")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrMemoryNotFound       = NewDomainError(ErrCodeNotFound, "memory not found")
	ErrOrganizationNotFound = NewDomainError(ErrCodeNotFound, "organization not found")
	ErrMembershipNotFound   = NewDomainError(ErrCodeNotFound, "membership not found")
	ErrAccessTokenNotFound  = NewDomainError(ErrCodeNotFound, "access token not found")
)

// Already exists errors
var (
	ErrOrganizationAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "organization already exists")
	ErrAccessTokenAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "access token already exists")
)

// Authorization errors
var (
	ErrAccessTokenRevoked = NewDomainError(ErrCodeUnauthorized, "access token has been revoked")
	ErrAccessTokenExpired = NewDomainError(ErrCodeUnauthorized, "access token has expired")
	ErrInvalidAccessToken = NewDomainError(ErrCodeUnauthorized, "invalid access token")
)

// Upstream provider errors. Messages are shown to end users verbatim.
var (
	ErrUpstreamRateLimited = NewDomainError(ErrCodeRateLimited, "Rate limit exceeded. Please wait a moment and try again.")
	ErrUpstreamQuota       = NewDomainError(ErrCodeQuotaExhausted, "AI credits exhausted. Please add credits to continue.")
	ErrUpstreamUnavailable = NewDomainError(ErrCodeUpstream, "AI service temporarily unavailable.")
)

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
