package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so ambient values from the host
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BALLAST_PORT", "DEV_MODE", "LOG_LEVEL",
		"BROKER_BASE_URL", "BROKER_DATA_URL", "BROKER_STREAM_URL",
		"BROKER_API_KEY", "BROKER_API_SECRET",
		"DRY_RUN_ONLY", "RUN_WHEN_CLOSED", "MAX_STRATEGY_RUNS",
		"BACKUP_SCHEDULE", "BACKUP_BUCKET", "BACKUP_ENDPOINT",
		"BACKUP_ACCESS_KEY", "BACKUP_SECRET_KEY", "BACKUP_RETENTION_DAYS",
		"MAINTENANCE_SCHEDULE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("BALLAST_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	os.Unsetenv("REBALANCE_SCHEDULE")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.False(t, cfg.DryRunOnly)
	assert.Equal(t, "0 35 9 * * MON-FRI", cfg.RebalanceSchedule)
	assert.Equal(t, 4, cfg.MaxStrategyRuns)
	assert.Equal(t, "0 0 2 * * *", cfg.BackupSchedule)
	assert.Equal(t, 30, cfg.BackupRetentionDays)
	assert.Equal(t, "0 30 4 * * *", cfg.MaintenanceSchedule)
	assert.False(t, cfg.BackupsEnabled())

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err, "Load should create the data directory")
	assert.True(t, info.IsDir())
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("BALLAST_PORT", "9001")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DRY_RUN_ONLY", "true")
	t.Setenv("RUN_WHEN_CLOSED", "true")
	t.Setenv("MAX_STRATEGY_RUNS", "8")
	t.Setenv("BROKER_API_KEY", "key")
	t.Setenv("BROKER_API_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DryRunOnly)
	assert.True(t, cfg.RunWhenClosed)
	assert.Equal(t, 8, cfg.MaxStrategyRuns)
	assert.Equal(t, "key", cfg.BrokerAPIKey)
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("BALLAST_PORT", "not-a-port")
	t.Setenv("MAX_STRATEGY_RUNS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, 4, cfg.MaxStrategyRuns)
}

func TestLoadEmptyScheduleDisablesRebalanceRuns(t *testing.T) {
	clearEnv(t)
	t.Setenv("REBALANCE_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.RebalanceSchedule)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Port: 8010, MaxStrategyRuns: 4, BackupRetentionDays: 30}
	}

	t.Run("accepts sane config", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("rejects bad port", func(t *testing.T) {
		cfg := base()
		cfg.Port = 0
		assert.ErrorContains(t, cfg.Validate(), "invalid port")

		cfg.Port = 70000
		assert.ErrorContains(t, cfg.Validate(), "invalid port")
	})

	t.Run("rejects zero workers", func(t *testing.T) {
		cfg := base()
		cfg.MaxStrategyRuns = 0
		assert.ErrorContains(t, cfg.Validate(), "max_strategy_runs")
	})

	t.Run("rejects negative retention", func(t *testing.T) {
		cfg := base()
		cfg.BackupRetentionDays = -1
		assert.ErrorContains(t, cfg.Validate(), "backup_retention_days")
	})

	t.Run("rejects bucket without credentials", func(t *testing.T) {
		cfg := base()
		cfg.BackupBucket = "backups"
		assert.ErrorContains(t, cfg.Validate(), "credentials missing")

		cfg.BackupAccessKey = "key"
		cfg.BackupSecretKey = "secret"
		require.NoError(t, cfg.Validate())
		assert.True(t, cfg.BackupsEnabled())
	})
}
