package models

import (
	"errors"
	"net/http"
)

type ErrorKind string // Category of a negotiation error

const (
	KindValidation        ErrorKind = "validation"         // Malformed input, recoverable by user correction
	KindInvalidTransition ErrorKind = "invalid_transition" // Stale or out-of-order action, recoverable by refetch
	KindNotFound          ErrorKind = "not_found"          // Entity deleted or archived concurrently
	KindTransport         ErrorKind = "transport"          // Network failure before the command reached the server
	KindUnknown           ErrorKind = "unknown"            // Command timed out, outcome undetermined
)

// Error describes a negotiation failure with a kind, an HTTP status and a message.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"-"`
	Message    string    `json:"reason"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message}
}

// NewInvalidTransitionError creates an invalid-transition error.
func NewInvalidTransitionError(message string) *Error {
	return &Error{Kind: KindInvalidTransition, StatusCode: http.StatusConflict, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

// NewTransportError creates a transport error.
func NewTransportError(message string) *Error {
	return &Error{Kind: KindTransport, StatusCode: 0, Message: message}
}

// NewUnknownOutcomeError creates an unknown-outcome error for a timed out command.
func NewUnknownOutcomeError(message string) *Error {
	return &Error{Kind: KindUnknown, StatusCode: 0, Message: message}
}

// IsKind reports whether err is an *Error with the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindFromStatus maps an HTTP status code to an error kind. Used by the
// transport adapter when a response body carries no kind.
func KindFromStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusBadRequest, http.StatusForbidden:
		return KindValidation
	case http.StatusConflict:
		return KindInvalidTransition
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindUnknown
	}
}
