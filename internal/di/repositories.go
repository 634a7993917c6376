package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/marketdata"
	"github.com/jtallis/ballast/internal/modules/ownership"
	"github.com/jtallis/ballast/internal/modules/strategies"
	"github.com/jtallis/ballast/internal/modules/universe"
)

// InitializeRepositories creates the data access layer over the open
// databases and stores it in the container.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.StrategyRepo = strategies.NewRepository(container.StrategiesDB.Conn(), log)

	// Predefined symbol lists live next to the strategies that reference them.
	container.ListRepo = universe.NewListRepository(container.StrategiesDB.Conn(), log)

	container.LedgerRepo = ownership.NewRepository(container.LedgerDB.Conn(), log)

	container.MarketCache = marketdata.NewCache(container.CacheDB.Conn())

	return nil
}
