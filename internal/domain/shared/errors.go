package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so that
// errors.Is(err, shared.ErrNotFound) matches any NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a new domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidState           = "INVALID_STATE"
	CodeInvalidTransition      = "INVALID_STATE_TRANSITION"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	CodeReferenceDataMissing   = "REFERENCE_DATA_MISSING"
	CodeReferenceDataAmbiguous = "REFERENCE_DATA_AMBIGUOUS"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidTransition      = NewDomainError(CodeInvalidTransition, "State transition is not allowed")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrReferenceDataMissing   = NewDomainError(CodeReferenceDataMissing, "Reference data not found")
	ErrReferenceDataAmbiguous = NewDomainError(CodeReferenceDataAmbiguous, "Reference data is ambiguous")
)

// IsReferenceError reports whether err is a missing or ambiguous reference data error
func IsReferenceError(err error) bool {
	if err == nil {
		return false
	}
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == CodeReferenceDataMissing || de.Code == CodeReferenceDataAmbiguous
}

// CodeOf returns the domain error code carried by err, or an empty string
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
