package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Service fetches daily bars from the broker's data API with a
// write-through cache. Cached series expire at the next UTC day
// boundary, when a new daily bar can exist.
type Service struct {
	cache  *Cache
	broker domain.BrokerClient
	log    zerolog.Logger
}

// NewService creates a new market data service.
func NewService(cache *Cache, broker domain.BrokerClient, log zerolog.Logger) *Service {
	return &Service{
		cache:  cache,
		broker: broker,
		log:    log.With().Str("service", "marketdata").Logger(),
	}
}

// GetDailyBars returns up to lookbackDays daily bars for a symbol,
// oldest first.
func (s *Service) GetDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]domain.Bar, error) {
	key := fmt.Sprintf("bars:daily:%s:%d", symbol, lookbackDays)

	var cached []domain.Bar
	if err := s.cache.Get(key, &cached); err == nil {
		s.log.Debug().Str("symbol", symbol).Int("bars", len(cached)).Msg("Bar cache hit")
		return cached, nil
	}

	bars, err := s.broker.GetBars(ctx, symbol, "1Day", lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily bars for %s: %w", symbol, err)
	}

	if err := s.cache.Set(key, bars, nextDayBoundary(time.Now()).Unix()); err != nil {
		// Cache write failures degrade to uncached operation
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache bars")
	}

	s.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Fetched daily bars")
	return bars, nil
}

// InvalidateSymbol drops all cached series for a symbol.
func (s *Service) InvalidateSymbol(symbol string) error {
	return s.cache.DeleteByPrefix("bars:daily:" + symbol + ":")
}

// PruneExpired removes expired cache entries.
func (s *Service) PruneExpired() (int64, error) {
	return s.cache.PruneExpired()
}

// nextDayBoundary returns the next UTC midnight after t.
func nextDayBoundary(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Interface conformance check.
var _ domain.BarProvider = (*Service)(nil)
