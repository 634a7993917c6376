package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// plus the background jobs ready for scheduling.
//
// Order of operations:
// 1. Open databases and apply schemas
// 2. Create repositories over the databases
// 3. Create services and the orchestrator
// 4. Build background jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.CloseDatabases()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.CloseDatabases()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs := RegisterJobs(container, cfg, log)

	log.Info().Msg("Dependency injection wiring completed")

	return container, jobs, nil
}
