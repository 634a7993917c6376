// Package rebalance turns target positions into notional orders.
package rebalance

import (
	"fmt"
	"math"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// flatThreshold is the market value below which a position counts as
// already closed.
const flatThreshold = 0.01

// Generator produces the orders that move current positions one step
// toward their targets.
type Generator struct {
	log zerolog.Logger
}

// NewGenerator creates a rebalance order generator.
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{
		log: log.With().Str("service", "rebalance").Logger(),
	}
}

// Generate builds exit orders for held positions that fell out of the
// target set, then adjustment orders for each target. Every order carries
// an audit reason naming the direction, side, target weight and step size.
// Sells are returned before buys so freed capital is available when the
// buys execute.
func (g *Generator) Generate(
	targets []domain.TargetPosition,
	positions []domain.Position,
	params domain.StrategyParams,
) []domain.RebalanceOrder {
	fraction := clampFraction(params.RebalanceFraction)
	minTrade := params.MinTradeSizeOrDefault()
	stepPct := fraction * 100

	targeted := make(map[string]bool, len(targets))
	for _, target := range targets {
		targeted[domain.NormalizeSymbol(target.Symbol)] = true
	}

	var sells, buys []domain.RebalanceOrder

	add := func(order domain.RebalanceOrder) {
		if order.Side == domain.OrderSideSell {
			sells = append(sells, order)
		} else {
			buys = append(buys, order)
		}
	}

	for _, pos := range positions {
		if targeted[domain.NormalizeSymbol(pos.Symbol)] {
			continue
		}
		if math.Abs(pos.MarketValue) < flatThreshold {
			continue
		}

		notional := fraction * math.Abs(pos.MarketValue)
		if notional < flatThreshold {
			continue
		}

		order := domain.RebalanceOrder{
			Symbol:   pos.Symbol,
			Notional: notional,
		}
		if pos.MarketValue < 0 {
			order.Side = domain.OrderSideBuy
			order.IsShortTarget = true
			order.Reason = fmt.Sprintf("cover short (no longer targeted): target weight 0.00%%, step %.0f%%", stepPct)
		} else {
			order.Side = domain.OrderSideSell
			order.Reason = fmt.Sprintf("exit long (no longer targeted): target weight 0.00%%, step %.0f%%", stepPct)
		}
		add(order)
	}

	for _, target := range targets {
		diff := (target.TargetValue - target.CurrentValue) * fraction
		if math.Abs(diff) < minTrade {
			g.log.Debug().
				Str("symbol", target.Symbol).
				Float64("diff", diff).
				Msg("Adjustment below minimum trade size, skipping")
			continue
		}

		order := domain.RebalanceOrder{
			Symbol:        target.Symbol,
			Notional:      math.Abs(diff),
			IsShortTarget: target.Side == domain.SideShort,
			Reason: fmt.Sprintf("%s %s: target weight %.2f%%, step %.0f%%",
				describeDirection(target, diff), target.Side,
				math.Abs(target.TargetWeight)*100, stepPct),
		}
		if diff > 0 {
			order.Side = domain.OrderSideBuy
		} else {
			order.Side = domain.OrderSideSell
		}
		add(order)
	}

	return append(sells, buys...)
}

// describeDirection names what an adjustment does to the position, for the
// order's audit reason.
func describeDirection(target domain.TargetPosition, diff float64) string {
	if target.Side == domain.SideShort {
		if diff > 0 {
			return "cover"
		}
		if target.CurrentValue >= 0 {
			return "open"
		}
		return "increase"
	}
	if diff < 0 {
		return "reduce"
	}
	if target.CurrentValue <= 0 {
		return "open"
	}
	return "increase"
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
