package orchestrator

import (
	"context"
	"math"

	"github.com/jtallis/ballast/internal/clients/alpaca"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/jtallis/ballast/internal/events"
	"github.com/jtallis/ballast/internal/modules/ownership"
)

// placeOrders places (or simulates) every validated order and collects one
// outcome per order. A failed placement never stops the batch.
func (o *Orchestrator) placeOrders(
	ctx context.Context,
	strategy domain.StrategyConfig,
	orders []domain.RebalanceOrder,
	allPositions []domain.Position,
	ownedPositions []domain.Position,
	owned map[string]bool,
	dryRun bool,
) []domain.OrderOutcome {
	outcomes := make([]domain.OrderOutcome, 0, len(orders))

	for _, order := range orders {
		outcome := o.placeOrder(ctx, order, allPositions, ownedPositions, owned, dryRun)
		outcomes = append(outcomes, outcome)

		if o.events != nil {
			o.events.EmitTyped(events.OrderPlaced, "orchestrator", &events.OrderPlacedData{
				StrategyID:    strategy.ID,
				Symbol:        outcome.Symbol,
				Side:          string(outcome.Side),
				Notional:      outcome.Notional,
				Qty:           outcome.Qty,
				Status:        string(outcome.Status),
				Reason:        outcome.Reason,
				BrokerOrderID: outcome.BrokerOrderID,
			})
		}
	}

	return outcomes
}

// placeOrder executes one rebalance order. Orders touching short positions
// always trade whole shares; long orders go out as notional orders first
// and fall back to whole shares when the asset is not fractionable.
func (o *Orchestrator) placeOrder(
	ctx context.Context,
	order domain.RebalanceOrder,
	allPositions []domain.Position,
	ownedPositions []domain.Position,
	owned map[string]bool,
	dryRun bool,
) domain.OrderOutcome {
	outcome := domain.OrderOutcome{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Reason:   order.Reason,
		Notional: roundCents(order.Notional),
	}

	// Opening a short in a symbol another strategy holds long would sell
	// that strategy's shares. Skip, never fail.
	if order.IsShortTarget && order.Side == domain.OrderSideSell &&
		ownership.LongHeldOutsideStrategy(order.Symbol, allPositions, owned) {
		outcome.Status = domain.OrderStatusSkipped
		outcome.Message = "another strategy holds a long position in this symbol"
		o.log.Warn().
			Str("symbol", order.Symbol).
			Msg("Short open skipped, symbol is held long by another strategy")
		return outcome
	}

	if dryRun {
		outcome.Status = domain.OrderStatusSimulated
		return outcome
	}

	if order.IsShortTarget {
		return o.placeWholeShares(ctx, order, ownedPositions, outcome)
	}

	result, err := o.broker.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:      order.Symbol,
		Notional:    outcome.Notional,
		Side:        order.Side,
		Type:        domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceDay,
	})
	if err != nil {
		if alpaca.IsNotFractionable(err) {
			o.log.Info().
				Str("symbol", order.Symbol).
				Msg("Asset not fractionable, retrying with whole shares")
			return o.placeWholeShares(ctx, order, ownedPositions, outcome)
		}
		outcome.Status = domain.OrderStatusFailed
		outcome.Message = err.Error()
		o.log.Error().Err(err).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Msg("Order placement failed")
		return outcome
	}

	outcome.Status = domain.OrderStatusSuccess
	outcome.BrokerOrderID = result.ID
	o.log.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("notional", outcome.Notional).
		Str("broker_order_id", result.ID).
		Msg("Order placed")
	return outcome
}

// placeWholeShares converts a notional order into a whole-share quantity
// from the latest price. Buys round down; sells are capped at the quantity
// the strategy actually holds, and short covers at the size of the short.
func (o *Orchestrator) placeWholeShares(
	ctx context.Context,
	order domain.RebalanceOrder,
	ownedPositions []domain.Position,
	outcome domain.OrderOutcome,
) domain.OrderOutcome {
	price, err := o.broker.GetLatestPrice(ctx, order.Symbol)
	if err != nil {
		outcome.Status = domain.OrderStatusFailed
		outcome.Message = "failed to fetch latest price: " + err.Error()
		o.log.Error().Err(err).Str("symbol", order.Symbol).Msg("No price for whole-share order")
		return outcome
	}
	if price <= 0 {
		outcome.Status = domain.OrderStatusFailed
		outcome.Message = "no usable price for whole-share order"
		return outcome
	}

	qty := math.Floor(order.Notional / price)
	held := heldQuantity(order.Symbol, ownedPositions)

	if order.Side == domain.OrderSideSell && !order.IsShortTarget {
		// Never sell more than the strategy holds.
		if limit := math.Floor(math.Max(held, 0)); qty > limit {
			qty = limit
		}
	}
	if order.Side == domain.OrderSideBuy && order.IsShortTarget {
		// Covering more than the short's size would flip the position long.
		if limit := math.Floor(math.Max(-held, 0)); qty > limit {
			qty = limit
		}
	}

	if qty < 1 {
		outcome.Status = domain.OrderStatusSkipped
		outcome.Message = "order size is below one whole share"
		o.log.Info().
			Str("symbol", order.Symbol).
			Float64("notional", order.Notional).
			Float64("price", price).
			Msg("Whole-share order skipped, size below one share")
		return outcome
	}

	result, err := o.broker.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:      order.Symbol,
		Qty:         qty,
		Side:        order.Side,
		Type:        domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceDay,
	})
	if err != nil {
		outcome.Status = domain.OrderStatusFailed
		outcome.Message = err.Error()
		o.log.Error().Err(err).
			Str("symbol", order.Symbol).
			Float64("qty", qty).
			Msg("Whole-share order placement failed")
		return outcome
	}

	outcome.Status = domain.OrderStatusSuccess
	outcome.BrokerOrderID = result.ID
	outcome.Qty = qty
	outcome.Notional = roundCents(qty * price)
	o.log.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", qty).
		Float64("price", price).
		Msg("Whole-share order placed")
	return outcome
}

// heldQuantity returns the signed quantity held in symbol, 0 when flat.
func heldQuantity(symbol string, positions []domain.Position) float64 {
	for _, pos := range positions {
		if domain.SameSymbol(pos.Symbol, symbol) {
			return pos.Qty
		}
	}
	return 0
}

// roundCents rounds a notional to whole cents, the broker's precision.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
