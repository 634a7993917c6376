package ranking

import (
	"testing"

	"github.com/jtallis/ballast/internal/domain"
	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMomentum(t *testing.T) {
	bars := testutil.NewBarSeries(10, 100, 1, 1000)

	got := Momentum(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 9.0, *got, 1e-9)
}

func TestMomentumNegative(t *testing.T) {
	bars := testutil.NewBarSeries(10, 100, -2, 1000)

	got := Momentum(bars)
	require.NotNil(t, got)
	assert.InDelta(t, -18.0, *got, 1e-9)
}

func TestMomentumInsufficientBars(t *testing.T) {
	assert.Nil(t, Momentum(nil))
	assert.Nil(t, Momentum(testutil.NewBarSeries(1, 100, 0, 1000)))
}

func TestMomentumZeroFirstClose(t *testing.T) {
	bars := []domain.Bar{{Close: 0}, {Close: 50}}
	assert.Nil(t, Momentum(bars))
}

func TestVolatilityFlatSeries(t *testing.T) {
	bars := testutil.NewFlatBarSeries(30, 100, 1000)

	got := Volatility(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 0.0, *got, 1e-9)
}

func TestVolatility(t *testing.T) {
	bars := []domain.Bar{{Close: 100}, {Close: 110}, {Close: 99}}

	// Returns are +10% and -10%, sample stddev is sqrt(0.02),
	// annualized by sqrt(252) and expressed in percent.
	got := Volatility(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 224.4994, *got, 0.001)
}

func TestVolatilityInsufficientBars(t *testing.T) {
	assert.Nil(t, Volatility(nil))
	assert.Nil(t, Volatility(testutil.NewBarSeries(2, 100, 1, 1000)))
}

func TestAvgVolume(t *testing.T) {
	bars := []domain.Bar{{Volume: 1000}, {Volume: 3000}}

	got := AvgVolume(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 2000.0, *got, 1e-9)
}

func TestAvgVolumeNoBars(t *testing.T) {
	assert.Nil(t, AvgVolume(nil))
}

func TestRSIDefaultsWithShortHistory(t *testing.T) {
	got := RSI(testutil.NewBarSeries(14, 100, 1, 1000))
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got)

	got = RSI(nil)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got)
}

func TestRSIAllGains(t *testing.T) {
	bars := testutil.NewBarSeries(30, 100, 1, 1000)

	got := RSI(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 100.0, *got, 1e-9)
}

func TestRSIAllLosses(t *testing.T) {
	bars := testutil.NewBarSeries(30, 200, -1, 1000)

	got := RSI(bars)
	require.NotNil(t, got)
	assert.InDelta(t, 0.0, *got, 1e-9)
}
