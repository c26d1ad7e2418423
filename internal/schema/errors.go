// file: internal/schema/errors.go
package schema

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrorCode identifies categories of schema failures.
type ErrorCode int

// Schema error codes (range 3000-3999).
const (
	ErrSchemaLoadFailed ErrorCode = iota + 3000
	ErrSchemaCompileFailed
	ErrSchemaNotFound
	ErrInvalidJSONFormat
	ErrValidationFailed
)

// ValidationError carries structured context for a schema failure.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Cause }

// WithContext attaches a key/value pair to the error, returning the error for
// chaining.
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewValidationError creates a ValidationError with the given code, message,
// and optional cause.
func NewValidationError(code ErrorCode, message string, cause error) *ValidationError {
	return &ValidationError{Code: code, Message: message, Cause: cause}
}

// IsValidationError extracts a *ValidationError from an error chain.
func IsValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}

// convertValidationError flattens a jsonschema validation error into our
// taxonomy, retaining the instance location of the deepest failure.
func convertValidationError(valErr *jsonschema.ValidationError, frameType string, data []byte) *ValidationError {
	leaf := valErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	converted := NewValidationError(
		ErrValidationFailed,
		fmt.Sprintf("Frame failed schema validation: %s", leaf.Message),
		valErr,
	).WithContext("frameType", frameType).
		WithContext("dataPreview", calculatePreview(data))
	if leaf.InstanceLocation != "" {
		converted.WithContext("instanceLocation", leaf.InstanceLocation)
	}
	return converted
}

// calculatePreview returns a short prefix of data for diagnostics.
func calculatePreview(data []byte) string {
	const previewLength = 100
	if len(data) <= previewLength {
		return string(data)
	}
	return string(data[:previewLength]) + "..."
}
