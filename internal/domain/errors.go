package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a domain error so transports can map it to a status code.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindValidation          ErrorKind = "INVALID_ARGUMENT"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindInvalidSignature    ErrorKind = "INVALID_SIGNATURE"
	KindNotImplemented      ErrorKind = "NOT_IMPLEMENTED"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindConflict            ErrorKind = "CONFLICT"
)

// Error is the typed error returned by aggregates and application services.
// Code is a stable machine-readable identifier that clients can switch on.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing entity, e.g. NewNotFoundError("Booking", id).
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    strings.ToUpper(entity) + "_NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewValidationError reports malformed input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message}
}

// NewForbiddenError reports an access-control violation.
func NewForbiddenError(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// NewInvalidStateError reports an operation the current status does not permit.
func NewInvalidStateError(code, message string) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Message: message}
}

// NewInvalidSignatureError reports a gateway callback that failed authentication.
func NewInvalidSignatureError(message string) *Error {
	return &Error{Kind: KindInvalidSignature, Code: "INVALID_SIGNATURE", Message: message}
}

// NewNotImplementedError reports an unsupported option such as a payment method.
func NewNotImplementedError(message string) *Error {
	return &Error{Kind: KindNotImplemented, Code: "NOT_IMPLEMENTED", Message: message}
}

// NewUpstreamUnavailableError reports a retryable failure of an external dependency.
func NewUpstreamUnavailableError(message string, cause error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Code: "UPSTREAM_UNAVAILABLE", Message: message, Err: cause}
}

// NewConflictError reports a lost optimistic-locking race.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Code: "CONCURRENT_MODIFICATION", Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsNotFound is shorthand for IsKind(err, KindNotFound).
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
