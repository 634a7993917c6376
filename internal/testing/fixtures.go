package testing

import (
	"time"

	"github.com/jtallis/ballast/internal/domain"
)

// NewStrategyFixture returns a valid long-only strategy for use in tests.
// Callers mutate the returned value to exercise specific paths.
func NewStrategyFixture() domain.StrategyConfig {
	return domain.StrategyConfig{
		ID:            "strat-test",
		UserID:        "user-test",
		Name:          "Test Momentum",
		AllocationPct: 100,
		Enabled:       true,
		Params: domain.StrategyParams{
			LookbackDays: 90,
			RankingFactors: []domain.FactorWeight{
				{Factor: domain.FactorMomentum, Weight: 1.0},
			},
			LongN:              5,
			RebalanceFraction:  1.0,
			MaxWeightPerSymbol: 1.0,
			WeightScheme:       domain.WeightSchemeEqual,
			CashReservePct:     0.10,
		},
		Universe: domain.UniverseConfig{
			Type:    domain.UniverseTypeCustom,
			Symbols: []string{"AAPL", "MSFT", "GOOG", "AMZN", "META"},
		},
	}
}

// NewBarSeries builds n daily bars ending today, walking the close from
// startPrice by step per bar. Volume is constant.
func NewBarSeries(n int, startPrice, step, volume float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	day := time.Now().UTC().AddDate(0, 0, -n)
	price := startPrice
	for i := 0; i < n; i++ {
		day = day.AddDate(0, 0, 1)
		bars[i] = domain.Bar{
			Timestamp: day,
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    volume,
		}
		price += step
	}
	return bars
}

// NewFlatBarSeries builds n daily bars with a constant close price.
func NewFlatBarSeries(n int, price, volume float64) []domain.Bar {
	return NewBarSeries(n, price, 0, volume)
}

// NewPositionFixture returns a long position with market value qty*price.
func NewPositionFixture(symbol string, qty, price float64) domain.Position {
	return domain.Position{
		Symbol:       symbol,
		Qty:          qty,
		MarketValue:  qty * price,
		CurrentPrice: price,
	}
}
