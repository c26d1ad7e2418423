// Package logging provides a common interface and setup for application-wide logging.
package logging

// file: internal/logging/slog.go

import (
	"log/slog"
	"os"
	"strings"
)

// slogLogger adapts the standard library's structured logger to the Logger interface.
// Fields accumulated via WithField are carried by the embedded *slog.Logger.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an existing *slog.Logger in the Logger interface.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs an info-level message with optional key-value pairs.
func (l *slogLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs a warning-level message with optional key-value pairs.
func (l *slogLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs an error-level message with optional key-value pairs.
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// WithField returns a logger that attaches the given key-value pair to every record.
func (l *slogLogger) WithField(key string, value any) Logger {
	return &slogLogger{logger: l.logger.With(key, value)}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a slog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupDefaultLogger installs a text-format slog logger writing to stderr at the
// given level as the application default. Stderr is used so that log output never
// interleaves with protocol frames when the server runs over stdio.
func SetupDefaultLogger(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	SetDefaultLogger(NewSlogLogger(slog.New(handler)))
}
