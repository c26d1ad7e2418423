// Package registry orchestrates template lookup, argument binding, and
// rendering behind a single Resolve operation. This file defines the
// resolution error taxonomy that the protocol layer maps onto error frames.
package registry

// file: internal/registry/errors.go

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorCode defines domain-specific error codes for resolution failures.
type ErrorCode int

// Resolution error codes. All but CodeRenderFailure are caller-input errors
// and are never retried server-side.
const (
	// CodeNotFound: unknown template name, or the exact version does not exist.
	CodeNotFound ErrorCode = 2000 + iota
	// CodeMissingParameter: a required parameter has no binding and no default.
	CodeMissingParameter
	// CodeUnknownParameter: the caller supplied an argument key the template
	// does not declare.
	CodeUnknownParameter
	// CodeTypeMismatch: a supplied value does not satisfy the declared type.
	CodeTypeMismatch
	// CodeRenderFailure: the template body failed to expand. Well-formed
	// published templates should never trigger this, so it is logged as a
	// server-side defect candidate.
	CodeRenderFailure
)

// Kind returns the wire-level error kind carried in protocol error frames.
func (c ErrorCode) Kind() string {
	switch c {
	case CodeNotFound:
		return "not_found"
	case CodeMissingParameter:
		return "missing_parameter"
	case CodeUnknownParameter:
		return "unknown_parameter"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeRenderFailure:
		return "render_error"
	default:
		return "internal"
	}
}

// ResolveError is the structured error type for all resolution failures.
// It carries a code, a human-readable message, an optional cause, and
// key-value context for logging.
type ResolveError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the standard Go error interface.
func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ResolveError (Code: %d): %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("ResolveError (Code: %d): %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error's context map and returns
// the error for chaining.
func (e *ResolveError) WithContext(key string, value interface{}) *ResolveError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// newResolveError builds a ResolveError, attaching a stack trace to the cause.
func newResolveError(code ErrorCode, message string, cause error) *ResolveError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &ResolveError{Code: code, Message: message, Cause: wrapped}
}

// NewNotFoundError reports an unknown template name or version.
func NewNotFoundError(name, selector string) *ResolveError {
	return newResolveError(
		CodeNotFound,
		fmt.Sprintf("no template %q matching version %q", name, selector),
		nil,
	).WithContext("template", name).WithContext("selector", selector)
}

// NewMissingParameterError reports a required parameter without a binding.
func NewMissingParameterError(param string) *ResolveError {
	return newResolveError(
		CodeMissingParameter,
		fmt.Sprintf("required parameter %q is missing", param),
		nil,
	).WithContext("parameter", param)
}

// NewUnknownParameterError reports an argument key the template does not declare.
func NewUnknownParameterError(param string) *ResolveError {
	return newResolveError(
		CodeUnknownParameter,
		fmt.Sprintf("unknown parameter %q", param),
		nil,
	).WithContext("parameter", param)
}

// NewTypeMismatchError reports a supplied value of the wrong type.
func NewTypeMismatchError(param, expected, actual string) *ResolveError {
	return newResolveError(
		CodeTypeMismatch,
		fmt.Sprintf("parameter %q expects %s, got %s", param, expected, actual),
		nil,
	).WithContext("parameter", param).
		WithContext("expected", expected).
		WithContext("actual", actual)
}

// NewRenderFailureError wraps a render engine failure.
func NewRenderFailureError(templateName string, version int, cause error) *ResolveError {
	return newResolveError(
		CodeRenderFailure,
		fmt.Sprintf("failed to render template %q version %d", templateName, version),
		cause,
	).WithContext("template", templateName).WithContext("version", version)
}

// AsResolveError extracts a *ResolveError from an error chain.
func AsResolveError(err error) (*ResolveError, bool) {
	var resolveErr *ResolveError
	ok := errors.As(err, &resolveErr)
	return resolveErr, ok
}

// IsCode reports whether err is a ResolveError with the given code.
func IsCode(err error, code ErrorCode) bool {
	resolveErr, ok := AsResolveError(err)
	return ok && resolveErr.Code == code
}
