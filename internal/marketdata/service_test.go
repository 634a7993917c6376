package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDailyBarsFetchesThenCaches(t *testing.T) {
	cache := NewCache(setupCacheDB(t))
	broker := testutil.NewMockBrokerClient()
	broker.SetBars("AAPL", testutil.NewBarSeries(90, 100, 0.5, 1e6))
	log := zerolog.New(nil).Level(zerolog.Disabled)

	svc := NewService(cache, broker, log)

	bars, err := svc.GetDailyBars(context.Background(), "AAPL", 90)
	require.NoError(t, err)
	assert.Len(t, bars, 90)

	// Second call must be served from cache even if the broker fails
	broker.SetError(errors.New("broker down"))
	cached, err := svc.GetDailyBars(context.Background(), "AAPL", 90)
	require.NoError(t, err)
	assert.Len(t, cached, 90)
	assert.Equal(t, bars[0].Close, cached[0].Close)
}

func TestGetDailyBarsBrokerError(t *testing.T) {
	cache := NewCache(setupCacheDB(t))
	broker := testutil.NewMockBrokerClient()
	broker.SetError(errors.New("boom"))
	log := zerolog.New(nil).Level(zerolog.Disabled)

	svc := NewService(cache, broker, log)

	_, err := svc.GetDailyBars(context.Background(), "AAPL", 90)
	require.Error(t, err)
}

func TestInvalidateSymbol(t *testing.T) {
	cache := NewCache(setupCacheDB(t))
	broker := testutil.NewMockBrokerClient()
	broker.SetBars("AAPL", testutil.NewBarSeries(30, 100, 1, 1e6))
	log := zerolog.New(nil).Level(zerolog.Disabled)

	svc := NewService(cache, broker, log)

	_, err := svc.GetDailyBars(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.NotZero(t, cache.GetExpiresAt("bars:daily:AAPL:30"))

	require.NoError(t, svc.InvalidateSymbol("AAPL"))
	assert.Zero(t, cache.GetExpiresAt("bars:daily:AAPL:30"))
}

func TestNextDayBoundary(t *testing.T) {
	now := time.Date(2025, 1, 2, 18, 30, 0, 0, time.UTC)
	boundary := nextDayBoundary(now)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), boundary)

	// Just before midnight still rolls to the next day
	late := time.Date(2025, 1, 2, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), nextDayBoundary(late))
}
