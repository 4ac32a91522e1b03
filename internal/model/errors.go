package model

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrNotFound is returned when a referenced event or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEventFull is returned when a capacity-gated operation runs at capacity.
	ErrEventFull = errors.New("event is full")

	// ErrOperationFailed wraps store and network failures.
	ErrOperationFailed = errors.New("operation failed")

	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when a non-host calls a host operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument is returned for missing or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// OpError is a failed operation: a kind, the message shown to the caller, and
// the underlying cause if there is one.
type OpError struct {
	Kind    error
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Fail builds an OpError of the given kind.
func Fail(kind error, message string) *OpError {
	return &OpError{Kind: kind, Message: message}
}

// Failed wraps cause as ErrOperationFailed. The cause's message is shown to the
// caller; fallback is used when the cause has none. Errors that already carry a
// kind keep it.
func Failed(cause error, fallback string) error {
	var op *OpError
	if errors.As(cause, &op) {
		return op
	}
	if errors.Is(cause, ErrNotFound) {
		return &OpError{Kind: ErrNotFound, Message: cause.Error(), Err: cause}
	}
	msg := fallback
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &OpError{Kind: ErrOperationFailed, Message: msg, Err: cause}
}

// Invalid builds an ErrInvalidArgument with a formatted message.
func Invalid(format string, args ...any) *OpError {
	return &OpError{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}
