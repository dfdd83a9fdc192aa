package request

import (
	"errors"
	"fmt"
)

// Error represents a failure defined by request semantics.
//
// Failures raised by sources or by user-supplied functions are never
// wrapped in Error; they reach the caller exactly as they were returned.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Request is the variant that failed.
	Request Kind

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes request errors.
type ErrorCode string

const (
	// ErrCodeEmptySequence indicates a request that needs at least one element
	// was dispatched over an empty sequence.
	ErrCodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"

	// ErrCodeInvalidRequest indicates a request is missing a required parameter.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Request != "" {
		return fmt.Sprintf("%s: %s (request=%s)", e.Code, e.Message, e.Request)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEmptySequenceError creates an Error for a request over zero elements.
func NewEmptySequenceError(kind Kind) *Error {
	return &Error{
		Code:    ErrCodeEmptySequence,
		Request: kind,
		Message: "sequence contains no elements",
	}
}

// NewInvalidRequestError creates an Error for a malformed request.
func NewInvalidRequestError(kind Kind, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidRequest,
		Request: kind,
		Message: message,
	}
}

// IsEmptySequence returns true if err is an empty sequence error.
// Uses errors.As to handle wrapped errors.
func IsEmptySequence(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeEmptySequence
	}
	return false
}
