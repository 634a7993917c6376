package ranking

import (
	"context"
	"testing"

	"github.com/jtallis/ballast/internal/domain"
	testutil "github.com/jtallis/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(bars *testutil.MockBarProvider) *Engine {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewEngine(bars, log)
}

func momentumParams(longN, shortN int) domain.StrategyParams {
	return domain.StrategyParams{
		LookbackDays:   90,
		RankingFactors: []domain.FactorWeight{{Factor: domain.FactorMomentum, Weight: 1.0}},
		LongN:          longN,
		ShortN:         shortN,
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("RISE", testutil.NewBarSeries(30, 100, 2, 1000))
	bars.SetBars("FLAT", testutil.NewFlatBarSeries(30, 100, 1000))
	bars.SetBars("FALL", testutil.NewBarSeries(30, 100, -1, 1000))

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"FALL", "FLAT", "RISE"}, momentumParams(3, 0))
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "RISE", ranked[0].Symbol)
	assert.Equal(t, "FLAT", ranked[1].Symbol)
	assert.Equal(t, "FALL", ranked[2].Symbol)
	assert.InDelta(t, 58.0, ranked[0].Score, 1e-9)
	assert.InDelta(t, 0.0, ranked[1].Score, 1e-9)
	for _, rs := range ranked {
		assert.Equal(t, domain.SideLong, rs.Side)
	}
}

func TestRankSplitsLongAndShort(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("A", testutil.NewBarSeries(30, 100, 4, 1000))
	bars.SetBars("B", testutil.NewBarSeries(30, 100, 2, 1000))
	bars.SetBars("C", testutil.NewFlatBarSeries(30, 100, 1000))
	bars.SetBars("D", testutil.NewBarSeries(30, 100, -1, 1000))
	bars.SetBars("E", testutil.NewBarSeries(30, 100, -2, 1000))

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"A", "B", "C", "D", "E"}, momentumParams(2, 2))
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	assert.Equal(t, "A", ranked[0].Symbol)
	assert.Equal(t, domain.SideLong, ranked[0].Side)
	assert.Equal(t, "B", ranked[1].Symbol)
	assert.Equal(t, domain.SideLong, ranked[1].Side)

	// Short side keeps descending order, worst score last.
	assert.Equal(t, "D", ranked[2].Symbol)
	assert.Equal(t, domain.SideShort, ranked[2].Side)
	assert.Equal(t, "E", ranked[3].Symbol)
	assert.Equal(t, domain.SideShort, ranked[3].Side)

	assert.Contains(t, ranked[0].Metrics, domain.FactorMomentum)
}

func TestRankCryptoNeverShort(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("A", testutil.NewBarSeries(30, 100, 2, 1000))
	bars.SetBars("B", testutil.NewFlatBarSeries(30, 100, 1000))
	bars.SetBars("C", testutil.NewBarSeries(30, 100, -1, 1000))
	bars.SetBars("BTC/USD", testutil.NewBarSeries(30, 100, -3, 1000))

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"A", "B", "C", "BTC/USD"}, momentumParams(1, 2))
	require.NoError(t, err)

	// BTC/USD ranks worst but cannot be shorted, so only C makes the short side.
	require.Len(t, ranked, 2)
	assert.Equal(t, "A", ranked[0].Symbol)
	assert.Equal(t, domain.SideLong, ranked[0].Side)
	assert.Equal(t, "C", ranked[1].Symbol)
	assert.Equal(t, domain.SideShort, ranked[1].Side)

	for _, rs := range ranked {
		if rs.Side == domain.SideShort {
			assert.False(t, domain.IsCrypto(rs.Symbol))
		}
	}
}

func TestRankInverseFactorFlipsOrder(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("CHOPPY", testutil.NewBarSeries(30, 100, 3, 1000))
	bars.SetBars("STEADY", testutil.NewFlatBarSeries(30, 100, 1000))

	params := domain.StrategyParams{
		LookbackDays: 90,
		RankingFactors: []domain.FactorWeight{
			{Factor: domain.FactorVolatility, Weight: 1.0, Inverse: true},
		},
		LongN: 2,
	}

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"CHOPPY", "STEADY"}, params)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// Low volatility wins when the factor is inverse.
	assert.Equal(t, "STEADY", ranked[0].Symbol)
	assert.Equal(t, "CHOPPY", ranked[1].Symbol)
	assert.Less(t, ranked[1].Score, ranked[0].Score)
}

func TestRankCombinesWeightedFactors(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("AAPL", testutil.NewBarSeries(30, 100, 2, 1000))

	params := domain.StrategyParams{
		LookbackDays: 90,
		RankingFactors: []domain.FactorWeight{
			{Factor: domain.FactorMomentum, Weight: 1.0},
			{Factor: domain.FactorRSI, Weight: 3.0},
		},
		LongN: 1,
	}

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"AAPL"}, params)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	// Momentum 58, RSI 100 (monotonic gains): (58*1 + 100*3) / 4.
	assert.InDelta(t, 89.5, ranked[0].Score, 1e-6)
	assert.InDelta(t, 58.0, ranked[0].Metrics[domain.FactorMomentum], 1e-9)
	assert.InDelta(t, 100.0, ranked[0].Metrics[domain.FactorRSI], 1e-9)
}

func TestRankNoDataSymbolKeepsZeroScore(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("RISE", testutil.NewBarSeries(30, 100, 2, 1000))
	bars.SetBars("FALL", testutil.NewBarSeries(30, 100, -1, 1000))

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"RISE", "GHOST", "FALL"}, momentumParams(3, 0))
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// GHOST has no bars so no factor resolves; it scores zero and stays
	// ranked between the positive and negative momentum symbols.
	assert.Equal(t, "RISE", ranked[0].Symbol)
	assert.Equal(t, "GHOST", ranked[1].Symbol)
	assert.Equal(t, "FALL", ranked[2].Symbol)
	assert.Zero(t, ranked[1].Score)
	assert.Empty(t, ranked[1].Metrics)
}

func TestRankRSIDefaultWithThinHistory(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("NEW", testutil.NewBarSeries(5, 100, 1, 1000))

	params := domain.StrategyParams{
		LookbackDays:   90,
		RankingFactors: []domain.FactorWeight{{Factor: domain.FactorRSI, Weight: 1.0}},
		LongN:          1,
	}

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"NEW"}, params)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 50.0, ranked[0].Score, 1e-9)
	assert.InDelta(t, 50.0, ranked[0].Metrics[domain.FactorRSI], 1e-9)
}

func TestRankSelectionClampedToUniverse(t *testing.T) {
	bars := testutil.NewMockBarProvider()
	bars.SetBars("A", testutil.NewBarSeries(30, 100, 2, 1000))
	bars.SetBars("B", testutil.NewBarSeries(30, 100, -1, 1000))

	ranked, err := newTestEngine(bars).Rank(context.Background(), []string{"A", "B"}, momentumParams(5, 5))
	require.NoError(t, err)

	// A universe smaller than long_n is absorbed entirely by the long side.
	require.Len(t, ranked, 2)
	for _, rs := range ranked {
		assert.Equal(t, domain.SideLong, rs.Side)
	}
}

func TestRankEmptyUniverse(t *testing.T) {
	ranked, err := newTestEngine(testutil.NewMockBarProvider()).Rank(context.Background(), nil, momentumParams(5, 0))
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
