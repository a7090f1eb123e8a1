package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "./backups", cfg.Backup.Dir)
	assert.Equal(t, 100, cfg.Backup.LogLimit)
	assert.Equal(t, "*/30 * * * *", cfg.Scheduler.CleanupSpec)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.ReportSpec)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.BackupSpec)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadConfigFromFileExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: ${AUCTIONHUB_TEST_PORT:-7000}
  logLevel: warn
database:
  host: ${AUCTIONHUB_TEST_DB_HOST}
  name: ${AUCTIONHUB_TEST_DB_NAME:-fallback}
backup:
  dir: /var/lib/auctionhub/backups
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("AUCTIONHUB_TEST_DB_HOST", "db.internal")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "fallback", cfg.Database.Name)
	assert.Equal(t, "/var/lib/auctionhub/backups", cfg.Backup.Dir)
	// untouched sections keep their defaults
	assert.Equal(t, 100, cfg.Backup.LogLimit)
}

func TestLoadConfigFromEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BACKUP_LOGLIMIT", "25")

	cfg, err := LoadConfigFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Backup.LogLimit)
}

func TestLoadConfigFromInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unterminated"), 0o644))

	_, err := LoadConfigFrom(dir)
	assert.Error(t, err)
}
