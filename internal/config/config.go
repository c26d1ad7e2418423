// Package config handles loading, parsing, and validating application
// configuration. It defines the structure for configuration settings, provides
// default values, loads settings from YAML files, and applies overrides from
// environment variables.
// file: internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/promptd/internal/logging"
)

// ServerConfig contains settings specific to the server component.
type ServerConfig struct {
	// Name is the human-readable name for the server, displayed in logs.
	Name string `yaml:"name"`
	// Transport selects how clients connect: "stdio" or "tcp".
	Transport string `yaml:"transport"`
	// ListenAddress is the host:port the server listens on when using the
	// TCP transport. Ignored for stdio.
	ListenAddress string `yaml:"listen_address"`
	// ChunkSize is the byte budget per streamed chunk. Zero uses the
	// built-in default.
	ChunkSize int `yaml:"chunk_size"`
	// LogLevel controls logging verbosity: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// RecipesConfig contains settings for the template recipe directory.
type RecipesConfig struct {
	// Dir is the directory scanned for recipe YAML files. Supports '~'
	// expansion for home directory.
	Dir string `yaml:"dir"`
	// Watch enables hot reload of the recipe directory via filesystem
	// notifications.
	Watch bool `yaml:"watch"`
}

// SchemaConfig holds settings related to wire frame validation.
type SchemaConfig struct {
	// Disabled turns off JSON schema validation of inbound frames. Intended
	// for debugging only.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Config is the root configuration structure. It aggregates configuration for
// the server, the recipe store, and frame validation.
type Config struct {
	// Server holds general server settings.
	Server ServerConfig `yaml:"server"`
	// Recipes holds recipe directory settings.
	Recipes RecipesConfig `yaml:"recipes"`
	// Schema holds frame validation settings.
	Schema SchemaConfig `yaml:"schema"`
}

// DefaultConfig returns a configuration populated with default values and a
// default recipe directory under the user's config directory.
func DefaultConfig() *Config {
	recipesDir := "recipes"
	if homeDir, err := os.UserHomeDir(); err == nil {
		recipesDir = filepath.Join(homeDir, ".config", "promptd", "recipes")
	}

	cfg := &Config{
		Server: ServerConfig{
			Name:          "promptd",
			Transport:     "stdio",
			ListenAddress: "localhost:8765",
			LogLevel:      "info",
		},
		Recipes: RecipesConfig{
			Dir:   recipesDir,
			Watch: true,
		},
	}
	applyEnvironmentOverrides(cfg, logging.GetLogger("config_default"))
	return cfg
}

// LoadFromFile loads configuration from the specified YAML file path. It
// starts with default values, merges the values from the YAML file, and
// finally applies any environment variable overrides. Supports '~' expansion
// in the file path.
func LoadFromFile(path string) (*Config, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path comes from command-line flag or default, considered trusted input.
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", expanded)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file YAML: %s", expanded)
	}

	applyEnvironmentOverrides(config, logging.GetLogger("config_load"))
	return config, nil
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "tcp":
	default:
		return errors.Newf("invalid server.transport %q: must be \"stdio\" or \"tcp\"", c.Server.Transport)
	}
	if c.Server.Transport == "tcp" && c.Server.ListenAddress == "" {
		return errors.New("server.listen_address is required for the tcp transport")
	}
	if c.Server.ChunkSize < 0 {
		return errors.Newf("invalid server.chunk_size %d: must be non-negative", c.Server.ChunkSize)
	}
	if c.Recipes.Dir == "" {
		return errors.New("recipes.dir is required")
	}
	return nil
}

// ExpandHome expands a leading '~' in path to the user's home directory.
func ExpandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory to expand path")
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// applyEnvironmentOverrides applies configuration overrides from environment
// variables. Environment variables take precedence over values set in
// configuration files or defaults.
func applyEnvironmentOverrides(config *Config, logger logging.Logger) {
	if name := os.Getenv("PROMPTD_SERVER_NAME"); name != "" {
		logger.Debug("Overriding server name from environment.", "envVar", "PROMPTD_SERVER_NAME", "value", name)
		config.Server.Name = name
	}
	if transport := os.Getenv("PROMPTD_TRANSPORT"); transport != "" {
		logger.Debug("Overriding transport from environment.", "envVar", "PROMPTD_TRANSPORT", "value", transport)
		config.Server.Transport = transport
	}
	if addr := os.Getenv("PROMPTD_LISTEN_ADDRESS"); addr != "" {
		logger.Debug("Overriding listen address from environment.", "envVar", "PROMPTD_LISTEN_ADDRESS", "value", addr)
		config.Server.ListenAddress = addr
	}
	if level := os.Getenv("PROMPTD_LOG_LEVEL"); level != "" {
		logger.Debug("Overriding log level from environment.", "envVar", "PROMPTD_LOG_LEVEL", "value", level)
		config.Server.LogLevel = level
	}
	if chunkStr := os.Getenv("PROMPTD_CHUNK_SIZE"); chunkStr != "" {
		if chunk, err := strconv.Atoi(chunkStr); err == nil && chunk > 0 {
			logger.Debug("Overriding chunk size from environment.", "envVar", "PROMPTD_CHUNK_SIZE", "value", chunk)
			config.Server.ChunkSize = chunk
		} else {
			logger.Warn("Invalid PROMPTD_CHUNK_SIZE environment variable ignored.", "value", chunkStr, "error", err)
		}
	}
	if dir := os.Getenv("PROMPTD_RECIPES_DIR"); dir != "" {
		logger.Debug("Overriding recipes directory from environment.", "envVar", "PROMPTD_RECIPES_DIR", "value", dir)
		if expanded, err := ExpandHome(dir); err == nil {
			config.Recipes.Dir = expanded
		} else {
			logger.Warn("Could not expand '~' in PROMPTD_RECIPES_DIR env var.", "error", err)
			config.Recipes.Dir = dir
		}
	}
	if watchStr := os.Getenv("PROMPTD_RECIPES_WATCH"); watchStr != "" {
		if watch, err := strconv.ParseBool(watchStr); err == nil {
			logger.Debug("Overriding recipe watching from environment.", "envVar", "PROMPTD_RECIPES_WATCH", "value", watch)
			config.Recipes.Watch = watch
		} else {
			logger.Warn("Invalid PROMPTD_RECIPES_WATCH environment variable ignored.", "value", watchStr)
		}
	}
}
