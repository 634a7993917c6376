// Package scheduler runs the recurring background jobs: scheduled rebalance
// runs, ledger backups and database maintenance.
package scheduler

import (
	"fmt"
	"time"

	"github.com/jtallis/ballast/internal/events"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron   *cron.Cron
	events *events.Manager
	log    zerolog.Logger
}

// New creates a scheduler. Schedules are six-field cron specs with a
// leading seconds column, e.g. "0 35 9 * * MON-FRI".
func New(eventManager *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		events: eventManager,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job on a cron schedule. The wrapper recovers panics
// so a bad run cannot take down the cron goroutine.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

func (s *Scheduler) execute(job Job) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("job", job.Name()).
				Msg("Job panicked")
			s.emit(job.Name(), "failed", fmt.Sprintf("panic: %v", r), time.Since(start))
		}
	}()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.emit(job.Name(), "started", "", 0)

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		s.emit(job.Name(), "failed", err.Error(), time.Since(start))
		return
	}

	s.log.Info().
		Str("job", job.Name()).
		Dur("took", time.Since(start)).
		Msg("Job completed")
	s.emit(job.Name(), "completed", "", time.Since(start))
}

func (s *Scheduler) emit(name, status, errMsg string, took time.Duration) {
	if s.events == nil {
		return
	}
	data := &events.JobStatusData{
		JobName:   name,
		Status:    status,
		Error:     errMsg,
		Duration:  took.Seconds(),
		Timestamp: time.Now().UTC(),
	}
	s.events.EmitTyped(data.EventType(), "scheduler", data)
}
