package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Runner fans strategy runs out to a worker pool. Strategies can run in
// parallel across users, but same-user strategies share one buying-power
// figure and are serialized with a per-user mutex so no run validates
// against a snapshot another run is spending.
type Runner struct {
	orchestrator *Orchestrator
	pool         *pond.WorkerPool
	log          zerolog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewRunner creates a runner with maxWorkers concurrent strategy slots.
func NewRunner(orchestrator *Orchestrator, maxWorkers int, log zerolog.Logger) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	logger := log.With().Str("service", "runner").Logger()

	pool := pond.New(
		maxWorkers,
		maxWorkers*4,
		pond.MinWorkers(1),
		pond.IdleTimeout(time.Minute),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error().Interface("panic", p).Msg("Strategy run panicked")
		}),
	)

	return &Runner{
		orchestrator: orchestrator,
		pool:         pool,
		log:          logger,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// RunAll executes the given strategies on the pool and blocks until every
// run finishes. Results are returned in input order; a failed run holds
// its slot with the failed summary rather than aborting the batch.
func (r *Runner) RunAll(ctx context.Context, strategies []domain.StrategyConfig, dryRun bool) []*domain.ExecutionResult {
	results := make([]*domain.ExecutionResult, len(strategies))

	var wg sync.WaitGroup
	for i, strategy := range strategies {
		wg.Add(1)
		r.pool.Submit(func() {
			defer wg.Done()
			results[i] = r.runOne(ctx, strategy, dryRun)
		})
	}
	wg.Wait()

	r.log.Info().Int("strategies", len(strategies)).Bool("dry_run", dryRun).Msg("Strategy batch finished")
	return results
}

// Run executes a single strategy, still honoring the per-user lock.
func (r *Runner) Run(ctx context.Context, strategy domain.StrategyConfig, dryRun bool) *domain.ExecutionResult {
	return r.runOne(ctx, strategy, dryRun)
}

func (r *Runner) runOne(ctx context.Context, strategy domain.StrategyConfig, dryRun bool) *domain.ExecutionResult {
	lock := r.userLock(strategy.UserID)
	lock.Lock()
	defer lock.Unlock()

	result, err := r.orchestrator.Execute(ctx, strategy, dryRun)
	if err != nil {
		r.log.Error().Err(err).
			Str("strategy_id", strategy.ID).
			Str("user_id", strategy.UserID).
			Msg("Strategy run failed")
	}
	return result
}

// userLock returns the mutex guarding a user's broker account.
func (r *Runner) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.userLocks[userID] = lock
	}
	return lock
}

// Stats reports pool counters for the system status endpoint.
func (r *Runner) Stats() map[string]interface{} {
	return map[string]interface{}{
		"running_workers":  r.pool.RunningWorkers(),
		"idle_workers":     r.pool.IdleWorkers(),
		"submitted_tasks":  r.pool.SubmittedTasks(),
		"waiting_tasks":    r.pool.WaitingTasks(),
		"successful_tasks": r.pool.SuccessfulTasks(),
		"failed_tasks":     r.pool.FailedTasks(),
	}
}

// Stop drains the pool. Called once on shutdown.
func (r *Runner) Stop() {
	r.pool.StopAndWait()
}
