// Package di wires the application together: databases, repositories,
// services and background jobs, in that order. The Container built by Wire
// is the single source of truth for service instances.
package di

import (
	"github.com/jtallis/ballast/internal/clients/alpaca"
	"github.com/jtallis/ballast/internal/database"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/marketdata"
	"github.com/jtallis/ballast/internal/modules/ownership"
	"github.com/jtallis/ballast/internal/modules/ranking"
	"github.com/jtallis/ballast/internal/modules/strategies"
	strategyhandlers "github.com/jtallis/ballast/internal/modules/strategies/handlers"
	"github.com/jtallis/ballast/internal/modules/universe"
	"github.com/jtallis/ballast/internal/orchestrator"
	"github.com/jtallis/ballast/internal/reliability"
	"github.com/jtallis/ballast/internal/signals"
)

// Container holds all application dependencies.
//
// Databases come first (strategies, ledger, cache), then the broker client,
// then repositories over the databases, then the services that coordinate
// them. Everything is injected through constructors; nothing reaches for
// globals.
type Container struct {
	// Databases
	StrategiesDB *database.DB // strategy configs and predefined symbol lists
	LedgerDB     *database.DB // append-only run and order history
	CacheDB      *database.DB // market data bar cache, safe to delete

	// Clients
	Broker       *alpaca.Client
	TradeUpdates *alpaca.TradeUpdatesStream // nil when no stream URL or key is configured

	// Repositories
	StrategyRepo *strategies.Repository
	LedgerRepo   *ownership.Repository
	ListRepo     *universe.ListRepository
	MarketCache  *marketdata.Cache

	// Services
	EventBus         *events.Bus
	EventManager     *events.Manager
	MarketData       *marketdata.Service
	Signals          *signals.Service
	Ranking          *ranking.Engine
	UniverseResolver *universe.Resolver
	Orchestrator     *orchestrator.Orchestrator
	Runner           *orchestrator.Runner
	StrategyHandler  *strategyhandlers.Handler

	// Backups (nil unless a bucket is configured)
	S3Client      *reliability.S3Client
	BackupService *reliability.BackupService
}

// Databases returns every database keyed by name, for the components that
// operate on all of them (health checks, maintenance, backups).
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"strategies": c.StrategiesDB,
		"ledger":     c.LedgerDB,
		"cache":      c.CacheDB,
	}
}
