package targets

import (
	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Calculator turns a ranked selection into per-symbol target positions,
// applying signal gates, position modifiers, the weighting scheme and the
// per-symbol weight cap.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a target position calculator.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("service", "targets").Logger(),
	}
}

// Calculate computes target positions for one run.
//
// readings holds the fetched signal values keyed by signal name; a
// condition whose signal has no reading is treated as not satisfied.
// A satisfied gate with the skip_trading action returns an empty target
// list, which downstream turns into pure exit orders. Weights are computed
// per side independently, capped, and applied to the investable amount
// (allocated equity less the cash reserve, scaled by position modifiers).
func (c *Calculator) Calculate(
	ranked []domain.RankedSymbol,
	params domain.StrategyParams,
	allocatedEquity float64,
	positions []domain.Position,
	readings map[string]float64,
) []domain.TargetPosition {
	for _, cond := range params.SignalConditions {
		if cond.Type != domain.ConditionTypeGate {
			continue
		}
		value, ok := readings[cond.Signal]
		if !ok {
			c.log.Warn().Str("signal", cond.Signal).Msg("No reading for gate condition, ignoring it")
			continue
		}
		if cond.Satisfied(value) && cond.Action == domain.ActionSkipTrading {
			c.log.Info().
				Str("signal", cond.Signal).
				Float64("value", value).
				Str("operator", cond.Operator).
				Float64("threshold", cond.Threshold).
				Msg("Trading gate satisfied, skipping new positions")
			return []domain.TargetPosition{}
		}
	}

	modifier := 1.0
	for _, cond := range params.SignalConditions {
		if cond.Type != domain.ConditionTypePositionModifier {
			continue
		}
		value, ok := readings[cond.Signal]
		if !ok {
			c.log.Warn().Str("signal", cond.Signal).Msg("No reading for modifier condition, ignoring it")
			continue
		}
		if cond.Satisfied(value) {
			modifier *= cond.Multiplier
			c.log.Info().
				Str("signal", cond.Signal).
				Float64("value", value).
				Float64("multiplier", cond.Multiplier).
				Msg("Position modifier applied")
		}
	}

	investable := (allocatedEquity - allocatedEquity*params.CashReservePct) * modifier

	var longs, shorts []domain.RankedSymbol
	for _, rs := range ranked {
		if rs.Side == domain.SideShort {
			shorts = append(shorts, rs)
		} else {
			longs = append(longs, rs)
		}
	}

	current := positionsBySymbol(positions)

	targets := make([]domain.TargetPosition, 0, len(ranked))
	targets = append(targets, c.sideTargets(longs, params, investable, current)...)
	targets = append(targets, c.sideTargets(shorts, params, investable, current)...)
	return targets
}

// sideTargets weights one side's candidates and builds their targets.
// Weight and value are negated for the short side.
func (c *Calculator) sideTargets(
	candidates []domain.RankedSymbol,
	params domain.StrategyParams,
	investable float64,
	current map[string]domain.Position,
) []domain.TargetPosition {
	weights := computeWeights(candidates, params.WeightScheme)
	weights = applyMaxWeightCap(weights, params.MaxWeightPerSymbol)

	targets := make([]domain.TargetPosition, 0, len(candidates))
	for i, rs := range candidates {
		weight := weights[i]
		value := investable * weight
		if rs.Side == domain.SideShort {
			weight = -weight
			value = -value
		}

		target := domain.TargetPosition{
			Symbol:       rs.Symbol,
			Side:         rs.Side,
			TargetWeight: weight,
			TargetValue:  value,
			Score:        rs.Score,
		}
		if pos, ok := current[domain.NormalizeSymbol(rs.Symbol)]; ok {
			target.CurrentValue = pos.MarketValue
			target.CurrentShares = pos.Qty
		}
		targets = append(targets, target)
	}

	return targets
}

// positionsBySymbol indexes positions by normalized symbol so crypto pairs
// match across the separated and unseparated spellings.
func positionsBySymbol(positions []domain.Position) map[string]domain.Position {
	index := make(map[string]domain.Position, len(positions))
	for _, pos := range positions {
		index[domain.NormalizeSymbol(pos.Symbol)] = pos
	}
	return index
}
