package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Monitor.CheckIntervalSec)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.AI.Model)
	assert.Equal(t, 100, cfg.AI.MaxTokens)
	assert.Equal(t, "09:00", cfg.Reports.Time)
	assert.Equal(t, "file", cfg.Reports.Store)
	assert.Equal(t, 30, cfg.Reports.RetentionDays)
	assert.True(t, cfg.Mailbox.TLS)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mailbox:
  imap_host: imap.example.com
  username: me@example.com
monitor:
  check_interval_sec: 300
  read_only: true
  addresses:
    - recruiter@example.com
reports:
  enabled: true
  store: sqlite
  store_path: /tmp/actions.db
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.Mailbox.IMAPHost)
	assert.Equal(t, "993", cfg.Mailbox.IMAPPort)
	assert.Equal(t, 300, cfg.Monitor.CheckIntervalSec)
	assert.True(t, cfg.Monitor.ReadOnly)
	assert.Equal(t, []string{"recruiter@example.com"}, cfg.Monitor.Addresses)
	assert.True(t, cfg.Reports.Enabled)
	assert.Equal(t, "sqlite", cfg.Reports.Store)
	assert.Equal(t, "/tmp/actions.db", cfg.Reports.StorePath)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	in, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	in.Mailbox.IMAPHost = "imap.example.com"
	in.Monitor.Addresses = []string{"a@example.com"}

	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", out.Mailbox.IMAPHost)
	assert.Equal(t, []string{"a@example.com"}, out.Monitor.Addresses)
	assert.Equal(t, in.Monitor.CheckIntervalSec, out.Monitor.CheckIntervalSec)
}
