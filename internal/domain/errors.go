package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
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

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped sentinels keep matching after NewDomainErrorWithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches a cause to a sentinel while keeping its code and message.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMessagesRequired = NewDomainError(ErrCodeValidation, "messages must not be empty")
	ErrQueryRequired    = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrInvalidRole      = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrUnknownNamespace = NewDomainError(ErrCodeValidation, "unknown namespace")
	ErrEmptyInput       = NewDomainError(ErrCodeValidation, "no texts to embed")
)

// Upstream errors
var (
	ErrRateLimited = NewDomainError(ErrCodeRateLimited, "upstream rate limit exceeded")
	ErrUpstream    = NewDomainError(ErrCodeUpstream, "upstream request failed")
)

// Index errors
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "vector dimension mismatch")
	ErrBuildInProgress   = NewDomainError(ErrCodeConflict, "index build already in progress")
	ErrCorruptIndex      = NewDomainError(ErrCodeInternalError, "index artifacts are inconsistent")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
