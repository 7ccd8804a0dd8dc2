package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 0.6, cfg.Grounding.ConfidenceThreshold)
	assert.True(t, cfg.Grounding.StrictMode)
	assert.False(t, cfg.Grounding.UseLLMAnalysis)
	assert.Equal(t, 60, cfg.Alignment.Threshold)
	assert.Equal(t, 8192, cfg.Embeddings.CacheSize)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  path: /tmp/test-groundd.db
grounding:
  confidence_threshold: 0.75
  strict_mode: false
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-groundd.db", cfg.Store.Path)
	assert.Equal(t, 0.75, cfg.Grounding.ConfidenceThreshold)
	assert.False(t, cfg.Grounding.StrictMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, 60, cfg.Alignment.Threshold)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: /tmp/from-file.db\n"), 0o600))

	t.Setenv("GROUNDD_STORE_PATH", "/tmp/from-env.db")
	t.Setenv("GROUNDD_GROUNDING_CONFIDENCE_THRESHOLD", "0.8")
	t.Setenv("GROUNDD_LLM_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.Store.Path)
	assert.Equal(t, 0.8, cfg.Grounding.ConfidenceThreshold)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Grounding.ConfidenceThreshold)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [}"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("GROUNDD_GROUNDING_CONFIDENCE_THRESHOLD", "1.5")

	_, err := Load("")
	assert.Error(t, err)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "store.path", envTransform("GROUNDD_STORE_PATH"))
	assert.Equal(t, "grounding.confidence_threshold", envTransform("GROUNDD_GROUNDING_CONFIDENCE_THRESHOLD"))
	assert.Equal(t, "llm.api_key", envTransform("GROUNDD_LLM_API_KEY"))
	assert.Equal(t, "logging", envTransform("GROUNDD_LOGGING"))
}
