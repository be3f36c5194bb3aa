package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return home
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8765, cfg.Port)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, "mcp_telegram", cfg.Telegram.SessionName)

	ttl, err := cfg.IdleTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ttl)
	assert.Equal(t, 32, cfg.Sessions.MaxSessions)
}

func TestLoadConfigFileAndEnvPrecedence(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".telegram-mcp")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	yaml := []byte("transport: http\nport: 9000\ntelegram:\n  api_id: 11111\n  api_hash: filehash\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	t.Setenv("MCP_PORT", "9100")
	t.Setenv("API_HASH", "envhash")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	// Environment wins over the file.
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "envhash", cfg.Telegram.APIHash)
	assert.Equal(t, 11111, cfg.Telegram.APIID)
}

func TestLoadConfigProjectOverridesUser(t *testing.T) {
	home := isolate(t)

	userDir := filepath.Join(home, ".telegram-mcp")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("port: 9000\nhost: 0.0.0.0\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	projectDir := filepath.Join(wd, ".telegram-mcp")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte("port: 9200\n"), 0o644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Port)
	// Fields absent from the project file keep the user-level value.
	assert.Equal(t, "0.0.0.0", cfg.Host)
}

func TestLoadConfigRejectsBadTransport(t *testing.T) {
	isolate(t)
	t.Setenv("MCP_TRANSPORT", "grpc")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport")
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".telegram-mcp")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sessions:\n  idle_ttl: soon\n"), 0o644))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_ttl")
}

func TestSessionPath(t *testing.T) {
	isolate(t)
	cfg := defaults()

	defaultPath, err := cfg.SessionPath("")
	require.NoError(t, err)
	assert.Equal(t, "mcp_telegram.session", filepath.Base(defaultPath))

	tokenPath, err := cfg.SessionPath("secret-token")
	require.NoError(t, err)
	assert.NotEqual(t, defaultPath, tokenPath)
	// The raw token never appears in the filename.
	assert.NotContains(t, tokenPath, "secret-token")

	again, err := cfg.SessionPath("secret-token")
	require.NoError(t, err)
	assert.Equal(t, tokenPath, again)
}
