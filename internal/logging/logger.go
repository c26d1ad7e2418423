// Package logging provides a common interface and setup for application-wide logging.
package logging

// file: internal/logging/logger.go

// Logger is the logging interface used throughout the server. Implementations
// accept slog-style alternating key-value pairs after the message. Components
// obtain a scoped logger via GetLogger or WithField so every record carries
// its origin.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, args ...any)

	// Info logs an info-level message.
	Info(msg string, args ...any)

	// Warn logs a warning-level message.
	Warn(msg string, args ...any)

	// Error logs an error-level message.
	Error(msg string, args ...any)

	// WithField returns a logger that attaches the given key-value pair to
	// every record.
	WithField(key string, value any) Logger
}

// NoopLogger implements Logger but does nothing. Used as a fallback when no
// logger is provided, so callers never need nil checks.
type NoopLogger struct{}

// Debug implements Logger but performs no action.
func (l *NoopLogger) Debug(_ string, _ ...any) {}

// Info implements Logger but performs no action.
func (l *NoopLogger) Info(_ string, _ ...any) {}

// Warn implements Logger but performs no action.
func (l *NoopLogger) Warn(_ string, _ ...any) {}

// Error implements Logger but performs no action.
func (l *NoopLogger) Error(_ string, _ ...any) {}

// WithField implements Logger, returning the NoopLogger itself.
func (l *NoopLogger) WithField(_ string, _ any) Logger { return l }

var noop = &NoopLogger{}

// GetNoopLogger returns the no-op logger instance.
func GetNoopLogger() Logger {
	return noop
}

// defaultLogger is the application's default logger instance.
var defaultLogger Logger = GetNoopLogger()

// SetDefaultLogger sets the default logger for the application.
func SetDefaultLogger(logger Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns a component-scoped logger backed by the application
// default.
func GetLogger(name string) Logger {
	return defaultLogger.WithField("component", name)
}
