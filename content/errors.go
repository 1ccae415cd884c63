package content

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to API callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
)

// String returns the human readable name used in API error bodies.
func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "Not Found"
	default:
		return "Internal Server Error"
	}
}

// Error carries a kind and a message that is safe to return to the caller.
// The optional cause is kept for logging and errors.Is/As matching.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// BadRequest reports invalid input.
func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// NotFound reports a missing or soft deleted record.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Unauthorized reports a missing or rejected credential.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Internal wraps cause with a caller safe message.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// Wrap attaches cause to a new error of the given kind.
func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
