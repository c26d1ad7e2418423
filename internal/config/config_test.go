// file: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600),
		"Test config file should be writable.")
	return path
}

func TestDefaultConfig_ProvidesUsableDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "promptd", cfg.Server.Name, "Default server name should be set.")
	assert.Equal(t, "stdio", cfg.Server.Transport, "Default transport should be stdio.")
	assert.Equal(t, "info", cfg.Server.LogLevel, "Default log level should be info.")
	assert.NotEmpty(t, cfg.Recipes.Dir, "Default recipe directory should be set.")
	assert.True(t, cfg.Recipes.Watch, "Recipe watching should default to on.")
	assert.NoError(t, cfg.Validate(), "Defaults should pass validation.")
}

func TestLoadFromFile_MergesFileOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  name: "test prompt server"
  transport: tcp
  listen_address: "127.0.0.1:9000"
  chunk_size: 1024
recipes:
  dir: "/srv/recipes"
  watch: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err, "Well-formed config file should load.")

	assert.Equal(t, "test prompt server", cfg.Server.Name, "File value should override default name.")
	assert.Equal(t, "tcp", cfg.Server.Transport, "File value should override default transport.")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddress, "Listen address should come from the file.")
	assert.Equal(t, 1024, cfg.Server.ChunkSize, "Chunk size should come from the file.")
	assert.Equal(t, "/srv/recipes", cfg.Recipes.Dir, "Recipe directory should come from the file.")
	assert.False(t, cfg.Recipes.Watch, "File should be able to disable watching.")
	assert.Equal(t, "info", cfg.Server.LogLevel, "Fields absent from the file keep their defaults.")
}

func TestLoadFromFile_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
recipes:
  dir: "/srv/recipes"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err, "Partial config file should load.")
	assert.Equal(t, "/srv/recipes", cfg.Recipes.Dir, "File value should apply.")
	assert.Equal(t, "stdio", cfg.Server.Transport, "Unset sections keep defaults.")
}

func TestLoadFromFile_MissingFile_Fails(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "no-such.yaml"))
	assert.Error(t, err, "A missing config file should be reported, not silently defaulted.")
}

func TestLoadFromFile_MalformedYAML_Fails(t *testing.T) {
	path := writeConfigFile(t, "server: [not: a: mapping")
	_, err := LoadFromFile(path)
	assert.Error(t, err, "Malformed YAML should fail to load.")
}

func TestEnvironmentOverrides_TakePrecedenceOverFile(t *testing.T) {
	t.Setenv("PROMPTD_SERVER_NAME", "env-name")
	t.Setenv("PROMPTD_TRANSPORT", "tcp")
	t.Setenv("PROMPTD_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("PROMPTD_LOG_LEVEL", "debug")
	t.Setenv("PROMPTD_CHUNK_SIZE", "2048")
	t.Setenv("PROMPTD_RECIPES_DIR", "/env/recipes")
	t.Setenv("PROMPTD_RECIPES_WATCH", "false")

	path := writeConfigFile(t, `
server:
  name: "file-name"
recipes:
  dir: "/file/recipes"
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err, "Config file should load.")

	assert.Equal(t, "env-name", cfg.Server.Name, "Environment should beat the file.")
	assert.Equal(t, "tcp", cfg.Server.Transport, "Environment should set the transport.")
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.ListenAddress, "Environment should set the address.")
	assert.Equal(t, "debug", cfg.Server.LogLevel, "Environment should set the log level.")
	assert.Equal(t, 2048, cfg.Server.ChunkSize, "Environment should set the chunk size.")
	assert.Equal(t, "/env/recipes", cfg.Recipes.Dir, "Environment should set the recipe directory.")
	assert.False(t, cfg.Recipes.Watch, "Environment should disable watching.")
}

func TestEnvironmentOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("PROMPTD_CHUNK_SIZE", "not-a-number")
	t.Setenv("PROMPTD_RECIPES_WATCH", "maybe")

	cfg := DefaultConfig()
	assert.Zero(t, cfg.Server.ChunkSize, "Unparseable chunk size should be ignored.")
	assert.True(t, cfg.Recipes.Watch, "Unparseable watch flag should be ignored.")
}

func TestConfig_Validate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport", func(c *Config) { c.Server.Transport = "carrier-pigeon" }},
		{"tcp without address", func(c *Config) { c.Server.Transport = "tcp"; c.Server.ListenAddress = "" }},
		{"negative chunk size", func(c *Config) { c.Server.ChunkSize = -1 }},
		{"empty recipe dir", func(c *Config) { c.Recipes.Dir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate(), "Validation should reject the value.")
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err, "Home directory should be resolvable in tests.")

	expanded, err := ExpandHome("~/recipes")
	require.NoError(t, err, "Expansion should succeed.")
	assert.Equal(t, filepath.Join(home, "recipes"), expanded, "Leading ~ should expand to home.")

	unchanged, err := ExpandHome("/absolute/path")
	require.NoError(t, err, "Absolute paths pass through.")
	assert.Equal(t, "/absolute/path", unchanged, "Paths without ~ should be unchanged.")
}
