package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackupRunner is the slice of the backup service the job needs.
type BackupRunner interface {
	Backup(ctx context.Context) error
}

// BackupJob archives the databases to remote storage on a schedule.
type BackupJob struct {
	backups BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(backups BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name.
func (j *BackupJob) Name() string {
	return "ledger_backup"
}

// Run performs one backup cycle.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	return j.backups.Backup(ctx)
}
