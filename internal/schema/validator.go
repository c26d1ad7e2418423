// Package schema validates inbound wire frames against the embedded JSON
// schema before they reach the protocol adapter.
// file: internal/schema/validator.go
package schema

import (
	"bytes"
	"context"
	_ "embed" // Required for go:embed.
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dkoosis/promptd/internal/logging"
)

//go:embed schema.json
var embeddedSchemaContent []byte

const schemaResourceID = "promptd://schema.json"

// Validator compiles the embedded frame schema once and validates frames
// against the definition matching their "type" field. Safe for concurrent use
// after Initialize.
type Validator struct {
	compiler            *jsonschema.Compiler
	schemas             map[string]*jsonschema.Schema
	mu                  sync.RWMutex
	initialized         bool
	logger              logging.Logger
	lastCompileDuration time.Duration
}

// NewValidator creates an uninitialized validator.
func NewValidator(logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	return &Validator{
		compiler: compiler,
		schemas:  make(map[string]*jsonschema.Schema),
		logger:   logger.WithField("component", "schema_validator"),
	}
}

// Initialize parses and compiles the embedded schema definitions.
func (v *Validator) Initialize(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		v.logger.Warn("Schema validator already initialized, skipping.")
		return nil
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(embeddedSchemaContent, &doc); err != nil {
		return NewValidationError(ErrSchemaLoadFailed, "Failed to parse embedded schema JSON",
			errors.Wrap(err, "json.Unmarshal failed"))
	}

	if err := v.compiler.AddResource(schemaResourceID, bytes.NewReader(embeddedSchemaContent)); err != nil {
		return NewValidationError(ErrSchemaLoadFailed, "Failed to add schema resource",
			errors.Wrap(err, "compiler.AddResource failed"))
	}

	compileStart := time.Now()
	baseSchema, err := v.compiler.Compile(schemaResourceID)
	if err != nil {
		return NewValidationError(ErrSchemaCompileFailed, "Failed to compile base schema",
			errors.Wrap(err, "compiler.Compile failed")).WithContext("resourceID", schemaResourceID)
	}
	v.schemas["base"] = baseSchema

	if defs, ok := doc["definitions"].(map[string]interface{}); ok {
		for name := range defs {
			pointer := schemaResourceID + "#/definitions/" + name
			compiled, errCompile := v.compiler.Compile(pointer)
			if errCompile != nil {
				return NewValidationError(ErrSchemaCompileFailed,
					fmt.Sprintf("Failed to compile schema definition '%s'", name),
					errors.Wrap(errCompile, "compiler.Compile failed")).WithContext("pointer", pointer)
			}
			v.schemas[name] = compiled
		}
	}
	v.lastCompileDuration = time.Since(compileStart)

	v.initialized = true
	v.logger.Info("Schema validator initialized.",
		"compileDuration", v.lastCompileDuration,
		"schemasCompiled", len(v.schemas))
	return nil
}

// IsInitialized returns whether Initialize has completed.
func (v *Validator) IsInitialized() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.initialized
}

// GetCompileDuration returns the duration of schema compilation.
func (v *Validator) GetCompileDuration() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastCompileDuration
}

// HasSchema checks whether a compiled definition with the given name exists.
func (v *Validator) HasSchema(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[name]
	return ok
}

// Validate checks a frame against the definition matching its "type" field,
// falling back to the base schema for unknown types so they still fail with a
// useful error.
func (v *Validator) Validate(_ context.Context, data []byte) error {
	if !v.IsInitialized() {
		return NewValidationError(ErrSchemaNotFound, "Schema validator not initialized", nil)
	}

	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return NewValidationError(ErrInvalidJSONFormat, "Invalid JSON format",
			errors.Wrap(err, "json.Unmarshal failed")).
			WithContext("dataPreview", calculatePreview(data))
	}

	frameType := peekFrameType(instance)
	schemaToUse, schemaUsedKey := v.schemaForFrameType(frameType)

	validationStart := time.Now()
	err := schemaToUse.Validate(instance)
	validationDuration := time.Since(validationStart)

	if err != nil {
		var valErr *jsonschema.ValidationError
		if errors.As(err, &valErr) {
			v.logger.Debug("Frame failed schema validation.",
				"duration", validationDuration,
				"frameType", frameType,
				"schemaUsed", schemaUsedKey,
				"error", valErr.Message)
			return convertValidationError(valErr, frameType, data)
		}
		return NewValidationError(ErrValidationFailed, "Schema validation failed with unexpected error",
			errors.Wrap(err, "schema.Validate failed unexpectedly")).
			WithContext("frameType", frameType)
	}

	v.logger.Debug("Frame passed schema validation.",
		"duration", validationDuration,
		"frameType", frameType,
		"schemaUsed", schemaUsedKey)
	return nil
}

// schemaForFrameType selects the compiled definition for a frame type.
func (v *Validator) schemaForFrameType(frameType string) (*jsonschema.Schema, string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if schema, ok := v.schemas[frameType]; ok {
		return schema, frameType
	}
	return v.schemas["base"], "base"
}

// peekFrameType extracts the "type" field from a decoded frame, if present.
func peekFrameType(instance interface{}) string {
	obj, ok := instance.(map[string]interface{})
	if !ok {
		return ""
	}
	frameType, _ := obj["type"].(string)
	return frameType
}
