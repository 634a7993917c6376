package ranking

import (
	"context"
	"sort"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Engine ranks a symbol universe by weighted factor scores and splits the
// result into long and short selections.
type Engine struct {
	bars domain.BarProvider
	log  zerolog.Logger
}

// NewEngine creates a ranking engine backed by the given bar provider.
func NewEngine(bars domain.BarProvider, log zerolog.Logger) *Engine {
	return &Engine{
		bars: bars,
		log:  log.With().Str("service", "ranking").Logger(),
	}
}

// Rank scores every symbol in the universe and returns the long selection
// followed by the short selection. Longs are the top long_n by score; shorts
// are the bottom short_n ordered worst-last. Crypto pairs are never shorted.
//
// A symbol whose bars cannot be fetched is not dropped: factors that need
// history resolve to nothing and the symbol keeps whatever score the
// remaining factors produce (zero when none resolve).
func (e *Engine) Rank(ctx context.Context, symbols []string, params domain.StrategyParams) ([]domain.RankedSymbol, error) {
	ranked := make([]domain.RankedSymbol, 0, len(symbols))

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := e.bars.GetDailyBars(ctx, symbol, params.LookbackDays)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch bars, ranking without history")
			bars = nil
		}

		score, metrics := e.score(bars, params.RankingFactors)
		ranked = append(ranked, domain.RankedSymbol{
			Symbol:  symbol,
			Side:    domain.SideLong,
			Score:   score,
			Metrics: metrics,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return e.split(ranked, params.LongN, params.ShortN), nil
}

// score computes the weighted average of the resolved factor values.
// Inverse factors are negated before weighting so that a low raw value
// ranks high. Factors that cannot be computed from the available bars
// contribute nothing, and a symbol with no resolved factors scores zero.
func (e *Engine) score(bars []domain.Bar, factors []domain.FactorWeight) (float64, map[string]float64) {
	metrics := make(map[string]float64)

	var weightedSum, totalWeight float64
	for _, fw := range factors {
		value := factorValue(fw.Factor, bars)
		if value == nil {
			continue
		}

		metrics[fw.Factor] = *value

		v := *value
		if fw.Inverse {
			v = -v
		}
		weightedSum += v * fw.Weight
		totalWeight += fw.Weight
	}

	if totalWeight == 0 {
		return 0, metrics
	}
	return weightedSum / totalWeight, metrics
}

// factorValue resolves one named factor against a bar series. Unknown
// factor names resolve to nothing; configs are validated upstream.
func factorValue(factor string, bars []domain.Bar) *float64 {
	switch factor {
	case domain.FactorMomentum:
		return Momentum(bars)
	case domain.FactorVolatility:
		return Volatility(bars)
	case domain.FactorAvgVolume:
		return AvgVolume(bars)
	case domain.FactorRSI:
		return RSI(bars)
	default:
		return nil
	}
}

// split takes the descending-sorted ranking and selects the long and short
// sides. The short side keeps descending order so the worst score is last.
// Crypto pairs are excluded because they cannot be sold short.
func (e *Engine) split(ranked []domain.RankedSymbol, longN, shortN int) []domain.RankedSymbol {
	if longN > len(ranked) {
		longN = len(ranked)
	}
	if shortN > len(ranked)-longN {
		shortN = len(ranked) - longN
	}

	selection := make([]domain.RankedSymbol, 0, longN+shortN)
	for _, rs := range ranked[:longN] {
		rs.Side = domain.SideLong
		selection = append(selection, rs)
	}

	for i := len(ranked) - shortN; i < len(ranked); i++ {
		rs := ranked[i]
		if domain.IsCrypto(rs.Symbol) {
			e.log.Debug().Str("symbol", rs.Symbol).Msg("Crypto pair excluded from short side")
			continue
		}
		rs.Side = domain.SideShort
		selection = append(selection, rs)
	}

	return selection
}
