package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// StrategyLister loads the strategies a scheduled run covers.
type StrategyLister interface {
	ListEnabled() ([]domain.StrategyConfig, error)
}

// BatchRunner executes a batch of strategies.
type BatchRunner interface {
	RunAll(ctx context.Context, strategies []domain.StrategyConfig, dryRun bool) []*domain.ExecutionResult
}

// ClockReader is the slice of the broker client the job needs.
type ClockReader interface {
	GetClock(ctx context.Context) (*domain.Clock, error)
}

// RebalanceJob runs every enabled strategy on its schedule.
type RebalanceJob struct {
	strategies    StrategyLister
	runner        BatchRunner
	clock         ClockReader
	runWhenClosed bool
	timeout       time.Duration
	log           zerolog.Logger
}

// NewRebalanceJob creates the scheduled rebalance job. With runWhenClosed
// false the job checks the venue clock and skips closed-market runs.
func NewRebalanceJob(
	strategies StrategyLister,
	runner BatchRunner,
	clock ClockReader,
	runWhenClosed bool,
	log zerolog.Logger,
) *RebalanceJob {
	return &RebalanceJob{
		strategies:    strategies,
		runner:        runner,
		clock:         clock,
		runWhenClosed: runWhenClosed,
		timeout:       30 * time.Minute,
		log:           log.With().Str("job", "rebalance").Logger(),
	}
}

// Name returns the job name.
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Run executes every enabled strategy as a live batch. A closed market or
// an empty strategy list is a quiet no-op; individual run failures are
// summarized in the returned error but never abort the batch.
func (j *RebalanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if !j.runWhenClosed {
		clock, err := j.clock.GetClock(ctx)
		if err != nil {
			return fmt.Errorf("failed to check market clock: %w", err)
		}
		if !clock.IsOpen {
			j.log.Info().
				Time("next_open", clock.NextOpen).
				Msg("Market closed, skipping scheduled rebalance")
			return nil
		}
	}

	strategies, err := j.strategies.ListEnabled()
	if err != nil {
		return fmt.Errorf("failed to list enabled strategies: %w", err)
	}
	if len(strategies) == 0 {
		j.log.Info().Msg("No enabled strategies, nothing to run")
		return nil
	}

	results := j.runner.RunAll(ctx, strategies, false)

	failed := 0
	for _, result := range results {
		if result == nil || !result.Success {
			failed++
		}
	}

	j.log.Info().
		Int("strategies", len(strategies)).
		Int("failed", failed).
		Msg("Scheduled rebalance finished")

	if failed > 0 {
		return fmt.Errorf("%d of %d strategy runs failed", failed, len(strategies))
	}
	return nil
}
