package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupHome points HOME at a temp dir and returns the config directory.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "syllabusd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	setupHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, `
server:
  http_port: 8181
extraction:
  window_after: 5
  snippet_timeout: 30s
oracle:
  provider: anthropic
  api_key: sk-ant-file
  model: claude-test
publish:
  nats_url: nats://127.0.0.1:4222
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Extraction.WindowAfter)
	assert.Equal(t, 1, cfg.Extraction.WindowBefore)
	assert.Equal(t, 30*time.Second, cfg.Extraction.SnippetTimeout.Duration())
	assert.Equal(t, ProviderAnthropic, cfg.Oracle.Provider)
	assert.Equal(t, "sk-ant-file", cfg.Oracle.APIKey.Value())
	assert.Equal(t, "claude-test", cfg.Oracle.Model)
	assert.True(t, cfg.Publish.Enabled())
	assert.Equal(t, "syllabus.items", cfg.Publish.SubjectPrefix)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8181\n", 0600)

	t.Setenv("SYLLABUSD_SERVER_HTTP_PORT", "7070")
	t.Setenv("SYLLABUSD_ORACLE_PROVIDER", "openai")
	t.Setenv("SYLLABUSD_ORACLE_API_KEY", "sk-env")
	t.Setenv("SYLLABUSD_EXTRACTION_MAX_CONCURRENCY", "8")
	t.Setenv("SYLLABUSD_OBSERVABILITY_ENABLE_TELEMETRY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	assert.Equal(t, "sk-env", cfg.Oracle.APIKey.Value())
	assert.Equal(t, 8, cfg.Extraction.MaxConcurrency)
	assert.True(t, cfg.Observability.EnableTelemetry)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "oracle:\n  provider: openai\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8181\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsLargeFile(t *testing.T) {
	dir := setupHome(t)
	body := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, body, 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_RejectsPathOutsideConfigDir(t *testing.T) {
	setupHome(t)
	other := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(other, []byte("server: {}\n"), 0600))

	_, err := Load(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path validation")
}

func TestValidateConfigPath_PrefixSibling(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sibling := filepath.Join(home, ".config", "syllabusd-evil", "config.yaml")
	assert.Error(t, validateConfigPath(sibling))
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SYLLABUSD_ORACLE_API_KEY":          "oracle.api_key",
		"SYLLABUSD_EXTRACTION_WINDOW_AFTER": "extraction.window_after",
		"SYLLABUSD_SERVER_HTTP_PORT":        "server.http_port",
		"SYLLABUSD_DEBUG":                   "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "syllabusd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
