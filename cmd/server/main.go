// Package main is the entry point for the ballast portfolio rebalancing
// service. It loads configuration, wires dependencies, schedules the
// background jobs and serves the HTTP API until it receives a shutdown
// signal.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jtallis/ballast/internal/config"
	"github.com/jtallis/ballast/internal/di"
	"github.com/jtallis/ballast/internal/scheduler"
	"github.com/jtallis/ballast/internal/server"
	"github.com/jtallis/ballast/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger so the configuration error is still reported
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting ballast")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// WAL checkpoints are written on close, so every database must be
	// closed even when we exit through a panic.
	defer container.StrategiesDB.Close()
	defer container.LedgerDB.Close()
	defer container.CacheDB.Close()

	sched := scheduler.New(container.EventManager, log)
	if cfg.RebalanceSchedule != "" {
		if err := sched.AddJob(cfg.RebalanceSchedule, jobs.Rebalance); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule rebalance job")
		}
	} else {
		log.Warn().Msg("No rebalance schedule configured, strategies only run via the API")
	}
	if jobs.Backup != nil {
		if err := sched.AddJob(cfg.BackupSchedule, jobs.Backup); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backup job")
		}
	}
	if err := sched.AddJob(cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}
	sched.Start()

	// Fill updates stream in over the broker websocket and are republished
	// on the event bus for SSE clients.
	if container.TradeUpdates != nil {
		if err := container.TradeUpdates.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start trade updates stream, continuing without it")
		}
	}

	srv := server.New(server.Config{
		Log:             log,
		Port:            cfg.Port,
		DataDir:         cfg.DataDir,
		Databases:       container.Databases(),
		EventBus:        container.EventBus,
		StrategyHandler: container.StrategyHandler,
		Runner:          container.Runner,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop accepting scheduled work first, then drain the worker pool so
	// in-flight strategy runs finish before the databases close.
	sched.Stop()
	container.Runner.Stop()

	if container.TradeUpdates != nil {
		if err := container.TradeUpdates.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping trade updates stream")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
