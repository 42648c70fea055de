package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"crm-sync/core/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "crm-sync", cfg.Storage.Bucket)
	assert.Equal(t, "59.0", cfg.Remote.APIVersion)
	assert.Equal(t, 200, cfg.Remote.BatchSize)
	assert.Equal(t, "registry.yaml", cfg.Sync.RegistryFile)
	assert.Equal(t, 200, cfg.Sync.PartitionSize)
	assert.Equal(t, 4, cfg.Sync.Jobs.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Sync.Jobs.Retry.InitialDelay)
	assert.Equal(t, jobs.FailRaise, cfg.Sync.Jobs.FailurePolicy)
	assert.Equal(t, time.Hour, cfg.Sync.PollLookback())
	assert.Zero(t, cfg.Sync.PollInterval())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REMOTE_BASE_URL=https://crm.example.com\nSYNC_WORKERS=8\n"), 0o600))
	// restored after the test, the .env overload writes the process environment
	t.Setenv("REMOTE_BASE_URL", "")
	t.Setenv("SYNC_WORKERS", "")
	t.Setenv("SYNC_JOBS_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("SYNC_POLL_INTERVAL_SECONDS", "30")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://crm.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 2, cfg.Sync.Jobs.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval())
}

func TestLoadConfig_RejectsBadPolicy(t *testing.T) {
	t.Setenv("SYNC_JOBS_FAILURE_POLICY", "ignore")
	_, err := LoadConfig(t.TempDir())
	assert.ErrorContains(t, err, "failure policy")
}

func TestSyncConfig_Validate(t *testing.T) {
	assert.NoError(t, SyncConfig{}.Validate())
	assert.Error(t, SyncConfig{PartitionSize: -1}.Validate())
	assert.Error(t, SyncConfig{Workers: -1}.Validate())
}
