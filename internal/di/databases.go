package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/config"
	"github.com/jtallis/ballast/internal/database"
)

// InitializeDatabases opens the three databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// strategies.db - strategy configs and predefined symbol lists
	strategiesDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "strategies.db"),
		Profile: database.ProfileStandard,
		Name:    "strategies",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize strategies database: %w", err)
	}
	container.StrategiesDB = strategiesDB

	// ledger.db - append-only run and order history, maximum durability
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		strategiesDB.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// cache.db - market data bars, rebuilt on demand, tuned for speed
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		strategiesDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{strategiesDB, ledgerDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			strategiesDB.Close()
			ledgerDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}

// CloseDatabases closes every open database, ignoring nil entries so it is
// safe to call on a partially wired container.
func (c *Container) CloseDatabases() {
	for _, db := range []*database.DB{c.StrategiesDB, c.LedgerDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}
