package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jtallis/ballast/internal/database"
	"github.com/rs/zerolog"
)

// CachePruner drops expired cache rows.
type CachePruner interface {
	PruneExpired() (int64, error)
}

// MaintenanceJob keeps the sqlite files healthy: integrity checks, WAL
// checkpoints, cache pruning and compaction.
type MaintenanceJob struct {
	databases map[string]*database.DB
	cache     CachePruner
	timeout   time.Duration
	log       zerolog.Logger
}

// NewMaintenanceJob creates the maintenance job over the named databases.
func NewMaintenanceJob(databases map[string]*database.DB, cache CachePruner, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		cache:     cache,
		timeout:   5 * time.Minute,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run checks and checkpoints every database, then prunes the bar cache.
// Problems with one database never stop maintenance of the others.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	failures := 0
	for name, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Health check failed")
			failures++
			continue
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("WAL checkpoint failed")
			failures++
		}
	}

	if j.cache != nil {
		pruned, err := j.cache.PruneExpired()
		if err != nil {
			j.log.Warn().Err(err).Msg("Cache prune failed")
			failures++
		} else if pruned > 0 {
			j.log.Info().Int64("rows", pruned).Msg("Pruned expired cache entries")

			// Reclaim the pages the prune just freed.
			if cacheDB := j.databases["cache"]; cacheDB != nil {
				if err := cacheDB.Vacuum(); err != nil {
					j.log.Warn().Err(err).Msg("Cache vacuum failed")
					failures++
				}
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("maintenance finished with %d failures", failures)
	}
	return nil
}
