// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	Port     int
	DevMode  bool
	LogLevel string

	// Broker (Alpaca-compatible paper trading API)
	BrokerBaseURL   string
	BrokerDataURL   string
	BrokerStreamURL string
	BrokerAPIKey    string
	BrokerAPISecret string

	// Execution
	DryRunOnly        bool   // force every run to dry-run regardless of request
	RebalanceSchedule string // cron spec for scheduled runs, empty disables
	RunWhenClosed     bool   // scheduled runs proceed while the market is closed
	MaxStrategyRuns   int    // worker pool size for concurrent strategy runs

	// Backups (S3-compatible storage; disabled when bucket is empty)
	BackupSchedule      string
	BackupBucket        string
	BackupEndpoint      string
	BackupAccessKey     string
	BackupSecretKey     string
	BackupRetentionDays int

	// Maintenance
	MaintenanceSchedule string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("BALLAST_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("BALLAST_PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BrokerBaseURL:   getEnv("BROKER_BASE_URL", "https://paper-api.alpaca.markets"),
		BrokerDataURL:   getEnv("BROKER_DATA_URL", "https://data.alpaca.markets"),
		BrokerStreamURL: getEnv("BROKER_STREAM_URL", "wss://paper-api.alpaca.markets/stream"),
		BrokerAPIKey:    getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret: getEnv("BROKER_API_SECRET", ""),

		DryRunOnly:        getEnvAsBool("DRY_RUN_ONLY", false),
		RebalanceSchedule: "0 35 9 * * MON-FRI",
		RunWhenClosed:     getEnvAsBool("RUN_WHEN_CLOSED", false),
		MaxStrategyRuns:   getEnvAsInt("MAX_STRATEGY_RUNS", 4),

		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),
		BackupBucket:        getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:      getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey:     getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:     getEnv("BACKUP_SECRET_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),

		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 30 4 * * *"),
	}

	// Setting REBALANCE_SCHEDULE to an empty string disables scheduled
	// runs entirely, so the default only applies when the variable is
	// absent.
	if schedule, ok := os.LookupEnv("REBALANCE_SCHEDULE"); ok {
		cfg.RebalanceSchedule = schedule
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants at startup. Broker credentials
// are not required here: runs against a credential-less client fail at the
// orchestration boundary with a clear error instead.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxStrategyRuns <= 0 {
		return fmt.Errorf("max_strategy_runs must be positive, got %d", c.MaxStrategyRuns)
	}
	if c.BackupRetentionDays < 0 {
		return fmt.Errorf("backup_retention_days must be non-negative, got %d", c.BackupRetentionDays)
	}
	if c.BackupBucket != "" && (c.BackupAccessKey == "" || c.BackupSecretKey == "") {
		return fmt.Errorf("backup bucket configured but credentials missing")
	}
	return nil
}

// BackupsEnabled reports whether the backup job should be scheduled
func (c *Config) BackupsEnabled() bool {
	return c.BackupBucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
