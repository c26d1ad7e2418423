// Package transport defines interfaces and implementations for sending and
// receiving protocol frames. This file defines the structured error types used
// within the transport layer.
package transport

// file: internal/transport/transport_errors.go

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrorCode defines specific numeric codes for transport-layer errors.
type ErrorCode int

// Defined error codes for the transport layer.
const (
	// ErrGeneric represents a general or unspecified transport error.
	ErrGeneric ErrorCode = iota + 1000
	// ErrInvalidMessage indicates a frame violated framing or structural rules.
	ErrInvalidMessage
	// ErrMessageTooLarge signifies a frame exceeded MaxMessageSize.
	ErrMessageTooLarge
	// ErrTransportClosed indicates an operation was attempted on a closed transport.
	ErrTransportClosed
	// ErrReadTimeout signifies a timeout or cancellation during a read.
	ErrReadTimeout
	// ErrWriteTimeout signifies a timeout or cancellation during a write.
	ErrWriteTimeout
	// ErrParseFailed indicates a failure during JSON syntax parsing.
	ErrParseFailed
)

// ErrorType categorizes transport errors for higher-level filtering.
type ErrorType int

// Defined error types for transport errors.
const (
	ErrorTypeGeneric ErrorType = iota
	ErrorTypeMessageSize
	ErrorTypeParse
	ErrorTypeTimeout
	ErrorTypeClosed
)

// Error represents a transport-level error with a type, code, underlying
// cause, and optional context.
type Error struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}

	// Size fields are populated for MessageSize errors only.
	Size    int
	MaxSize int
}

// Error implements the standard Go error interface.
func (e *Error) Error() string {
	base := fmt.Sprintf("TransportError [%d] %s", e.Code, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

// Unwrap returns the underlying cause, enabling errors.Is/As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error's context map and returns
// the error for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches transport errors by Type and Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// NewError creates a transport error of generic type, attaching a stack trace
// to the cause when present.
func NewError(code ErrorCode, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{
		Type:    ErrorTypeGeneric,
		Code:    code,
		Message: message,
		Cause:   wrapped,
		Context: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// NewMessageSizeError creates a transport error for frames exceeding MaxMessageSize.
func NewMessageSizeError(size, maxSize int, fragment []byte) *Error {
	err := NewError(
		ErrMessageTooLarge,
		fmt.Sprintf("frame size %d exceeds maximum allowed size %d", size, maxSize),
		nil,
	)
	err.Type = ErrorTypeMessageSize
	err.Size = size
	err.MaxSize = maxSize
	if len(fragment) > 0 {
		err = err.WithContext("messagePreview", string(fragment))
	}
	return err
}

// NewParseError creates a transport error for JSON syntax failures, including
// a preview of the offending frame.
func NewParseError(message []byte, cause error) *Error {
	err := NewError(ErrParseFailed, "failed to parse JSON frame", cause)
	err.Type = ErrorTypeParse
	err = err.WithContext("messagePreview", preview(message))
	err = err.WithContext("messageLength", len(message))
	return err
}

// NewTimeoutError creates a transport error for read or write timeouts.
func NewTimeoutError(operation string, cause error) *Error {
	code := ErrReadTimeout
	if operation == "write" {
		code = ErrWriteTimeout
	}
	err := NewError(code, fmt.Sprintf("%s operation timed out", operation), cause)
	err.Type = ErrorTypeTimeout
	return err.WithContext("operation", operation)
}

// NewClosedError creates a transport error for operations on a closed transport.
func NewClosedError(operation string) *Error {
	err := NewError(ErrTransportClosed, fmt.Sprintf("cannot perform %s on closed transport", operation), nil)
	err.Type = ErrorTypeClosed
	return err.WithContext("operation", operation)
}

// IsClosedError checks whether an error (or its cause chain) signifies a
// closed transport. io.EOF counts as closure.
func IsClosedError(err error) bool {
	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr.Type == ErrorTypeClosed || transportErr.Code == ErrTransportClosed
	}
	return errors.Is(err, io.EOF)
}
