package errors

import (
	"fmt"
)

// Error is the structured error type shared across the engine, the bus, and
// the authority/taxonomy service. It never leaks a stack trace; components
// construct it at the point where a Kind is known.
type Error struct {
	// Code is the unique error code (e.g. "ERR_202_TAXONOMY_NODE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Kind classifies the error for HTTP-status mapping (see Kind.HTTPStatus).
	Kind Kind

	// Severity is used only for log-level selection.
	Severity Severity

	// Details contains additional context as key-value pairs (e.g. node id).
	Details map[string]string

	// Cause is the underlying error that caused this error, if any.
	Cause error

	// Retryable indicates the operation may succeed if retried unchanged.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code, enabling
// errors.Is() to work with *Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error and returns it for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message. Kind and
// severity are derived from the code's numeric prefix.
func New(code string, message string, cause error) *Error {
	kind := kindFromCode(code)
	return &Error{
		Code:      code,
		Message:   message,
		Kind:      kind,
		Severity:  severityFromKind(kind),
		Cause:     cause,
		Retryable: kind == KindUnavailable,
	}
}

// Wrap creates an Error from an existing error, reusing its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidArgument builds a 400-class error (range/enum/malformed-id checks).
func InvalidArgument(code, message string) *Error {
	return New(code, message, nil)
}

// NotFound builds a 404-class error.
func NotFound(code, message string) *Error {
	return New(code, message, nil)
}

// Conflict builds a 409-class error (taxonomy delete-non-empty, slug clash).
func Conflict(code, message string) *Error {
	return New(code, message, nil)
}

// Unavailable builds a 503-class error for a missing/timed-out model. Most
// call sites degrade silently instead of constructing this; it exists for
// the few paths (§7) that must surface unavailability to the caller.
func Unavailable(code, message string, cause error) *Error {
	return New(code, message, cause)
}

// Internal builds a 500-class error for an unexpected failure.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, message, cause)
}

// IsRetryable reports whether err is an *Error with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind from err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the error code from err, or "" if err is not an *Error.
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// HTTPStatus maps err to the §6 status table. Errors that are not *Error
// map to 500.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}
