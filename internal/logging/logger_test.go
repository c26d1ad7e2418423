// internal/logging/logger_test.go
package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_ReturnsNonNil(t *testing.T) {
	logger := GetLogger("test")
	require.NotNil(t, logger, "GetLogger should never return nil.")
}

func TestSlogLogger_EmitsComponentField(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlogLogger(slog.New(handler)).WithField("component", "test_component")

	logger.Info("test message", "key1", "value1", "key2", 123)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON.")
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "test_component", entry["component"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(123), entry["key2"])
}

func TestSlogLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := NewSlogLogger(slog.New(handler))

	logger.Debug("should be suppressed")
	assert.Empty(t, buf.String(), "Debug output should be suppressed at info level.")

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestParseLevel_MapsNames(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"), "Unknown names fall back to info.")
}

func TestSetDefaultLogger_ScopesGetLogger(t *testing.T) {
	original := defaultLogger
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	SetDefaultLogger(NewSlogLogger(slog.New(handler)))

	GetLogger("recipe_store").Info("loaded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON.")
	assert.Equal(t, "recipe_store", entry["component"],
		"GetLogger should scope records with the component name.")

	SetDefaultLogger(nil)
	assert.NotNil(t, defaultLogger, "A nil default must be ignored, not installed.")
}

func TestNoopLogger_IsSafe(t *testing.T) {
	logger := GetNoopLogger()
	logger.Debug("ignored")
	logger.Error("ignored", "key", "value")
	assert.Same(t, logger, logger.WithField("k", "v"), "NoopLogger.WithField returns itself.")
}
