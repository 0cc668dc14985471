package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.Transport.PingInterval)
	assert.Equal(t, "ws://localhost:8001/messages/ws", cfg.WebsocketURL)
	assert.Equal(t, "file", cfg.Credentials.Driver)
	assert.NotEmpty(t, cfg.Credentials.Path)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
backend_url: https://api.example.com
websocket_url: wss://api.example.com/messages/ws
transport:
  reconnect_delay: 5s
credentials:
  driver: postgres
  dsn: postgres://u:p@localhost/chat?sslmode=disable
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.Transport.PingInterval)
	assert.Equal(t, "postgres", cfg.Credentials.Driver)
	assert.Equal(t, "default", cfg.Credentials.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend_url: https://file.example.com\n")
	t.Setenv("CHAT_BACKEND_URL", "https://env.example.com")
	t.Setenv("CHAT_RECONNECT_DELAY", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.BackendURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Transport.ReconnectDelay)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "backend_url: [unterminated\n"))
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv("CHAT_RECONNECT_DELAY", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "CHAT_RECONNECT_DELAY")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.WebsocketURL = "ftp://example.com/ws"
	cfg.Credentials.Driver = "postgres"
	cfg.Transport.ReconnectDelay = 0
	cfg.LogLevel = "chatty"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported scheme")
	assert.ErrorContains(t, err, "credentials.dsn")
	assert.ErrorContains(t, err, "reconnect_delay")
	assert.ErrorContains(t, err, "log_level")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}
