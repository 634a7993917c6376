package di

import (
	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/config"
	"github.com/jtallis/ballast/internal/scheduler"
)

// JobInstances holds the background jobs ready for scheduling. Backup is
// nil when off-site backups are not configured.
type JobInstances struct {
	Rebalance   *scheduler.RebalanceJob
	Backup      *scheduler.BackupJob
	Maintenance *scheduler.MaintenanceJob
}

// RegisterJobs builds the background jobs from container services.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) *JobInstances {
	jobs := &JobInstances{
		Rebalance: scheduler.NewRebalanceJob(
			container.StrategyRepo,
			container.Runner,
			container.Broker,
			cfg.RunWhenClosed,
			log,
		),
		Maintenance: scheduler.NewMaintenanceJob(container.Databases(), container.MarketCache, log),
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, log)
	}

	return jobs
}
