package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/kephasrpc/ws"
)

func TestClientConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: ws://localhost:6800/jsonrpc
max_concurrent: 4
max_retries: -1
poll_interval: 250ms
heartbeat_interval: 5s
fail_unknown_notifications: true
rate_limit:
  messages_per_second: 20
  burst: 40
`), 0o600))

	fc, err := loadFileConfig(path)
	require.NoError(t, err)

	cfg, err := fc.clientConfig("")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:6800/jsonrpc", cfg.URL)
	require.Equal(t, 4, cfg.MaxConcurrent)
	require.Equal(t, -1, cfg.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, ws.FailUnknown, cfg.UnknownNotifications)
	require.True(t, cfg.Transport.RateLimitConfig.Enabled)
	require.Equal(t, 40, cfg.Transport.RateLimitConfig.Burst)

	cfg, err = fc.clientConfig("ws://override/ws")
	require.NoError(t, err)
	require.Equal(t, "ws://override/ws", cfg.URL)
}

func TestClientConfigDefaults(t *testing.T) {
	t.Setenv(envURL, "ws://from-env/ws")

	fc, err := loadFileConfig("")
	require.NoError(t, err)
	cfg, err := fc.clientConfig("")
	require.NoError(t, err)
	require.Equal(t, "ws://from-env/ws", cfg.URL)
	require.Equal(t, ws.NewConfig("x").MaxConcurrent, cfg.MaxConcurrent)
	require.Equal(t, ws.NewConfig("x").MaxRetries, cfg.MaxRetries)

	t.Setenv(envURL, "")
	_, err = fc.clientConfig("")
	require.Error(t, err)
}

func TestLoadFileConfigErrors(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unterminated"), 0o600))
	_, err = loadFileConfig(path)
	require.Error(t, err)
}
