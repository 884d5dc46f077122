package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Snapshot.Interval)
	assert.Equal(t, uint(3), cfg.Notify.Attempts)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.ErrorIs(t, cfg.ValidateServe(), ErrMissingJWTSecret)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(`
server:
  addr: ":9090"
notify:
  webhook_url: "http://hooks.local/over"
  attempts: 5
report:
  organization: "ONG Sahel"
`), 0o600))
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("SNAPSHOT_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "http://hooks.local/over", cfg.Notify.WebhookURL)
	assert.Equal(t, uint(5), cfg.Notify.Attempts)
	assert.Equal(t, "ONG Sahel", cfg.Report.Organization)
	assert.Equal(t, time.Minute, cfg.Snapshot.Interval)
	assert.NoError(t, cfg.ValidateServe())
}
