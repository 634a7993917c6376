package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/clients/alpaca"
	"github.com/jtallis/ballast/internal/config"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/marketdata"
	"github.com/jtallis/ballast/internal/modules/ranking"
	strategyhandlers "github.com/jtallis/ballast/internal/modules/strategies/handlers"
	"github.com/jtallis/ballast/internal/modules/universe"
	"github.com/jtallis/ballast/internal/orchestrator"
	"github.com/jtallis/ballast/internal/reliability"
	"github.com/jtallis/ballast/internal/signals"
)

// InitializeServices creates the business logic layer: event bus, broker
// client, market data pipeline and the orchestrator that ties them together.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	brokerCfg := alpaca.Config{
		BaseURL:   cfg.BrokerBaseURL,
		DataURL:   cfg.BrokerDataURL,
		StreamURL: cfg.BrokerStreamURL,
		APIKey:    cfg.BrokerAPIKey,
		APISecret: cfg.BrokerAPISecret,
	}
	container.Broker = alpaca.NewClient(brokerCfg, log)

	// The trade updates stream needs credentials to authenticate; without
	// them order fills are still picked up by REST polling.
	if cfg.BrokerAPIKey != "" && cfg.BrokerStreamURL != "" {
		container.TradeUpdates = alpaca.NewTradeUpdatesStream(brokerCfg, container.EventBus, log)
	}

	container.MarketData = marketdata.NewService(container.MarketCache, container.Broker, log)
	container.Signals = signals.NewService(log)
	container.Ranking = ranking.NewEngine(container.MarketData, log)
	container.UniverseResolver = universe.NewResolver(container.ListRepo, log)

	container.Orchestrator = orchestrator.New(orchestrator.Config{
		Broker:     container.Broker,
		Signals:    container.Signals,
		Universe:   container.UniverseResolver,
		Ranking:    container.Ranking,
		Ledger:     container.LedgerRepo,
		Events:     container.EventManager,
		DryRunOnly: cfg.DryRunOnly,
	}, log)
	container.Runner = orchestrator.NewRunner(container.Orchestrator, cfg.MaxStrategyRuns, log)

	container.StrategyHandler = strategyhandlers.NewHandler(
		container.StrategyRepo,
		container.Orchestrator,
		container.LedgerRepo,
		log,
	)

	if cfg.BackupsEnabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.BackupBucket,
			Endpoint:  cfg.BackupEndpoint,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup storage client: %w", err)
		}
		container.S3Client = s3Client
		container.BackupService = reliability.NewBackupService(
			s3Client,
			container.Databases(),
			cfg.DataDir,
			cfg.BackupRetentionDays,
			log,
		)
		log.Info().Str("bucket", cfg.BackupBucket).Msg("Off-site backups enabled")
	}

	return nil
}
