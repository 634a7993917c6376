// Package validation checks rebalance orders against account constraints.
package validation

import (
	"fmt"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Validator fits a batch of orders to the account's buying power.
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates an order validator.
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log: log.With().Str("service", "validation").Logger(),
	}
}

// Validate scales buy orders down proportionally when their combined
// notional exceeds the available buying power. Sells are never touched.
// The returned message is informational; insufficient buying power is a
// scaling condition, not an error. The input slice is not modified.
func (v *Validator) Validate(orders []domain.RebalanceOrder, buyingPower float64) ([]domain.RebalanceOrder, string) {
	out := make([]domain.RebalanceOrder, len(orders))
	copy(out, orders)

	var totalBuy float64
	for _, order := range out {
		if order.Side == domain.OrderSideBuy {
			totalBuy += order.Notional
		}
	}

	if totalBuy <= buyingPower || totalBuy == 0 {
		return out, fmt.Sprintf("orders within buying power ($%.2f buys, $%.2f available)", totalBuy, buyingPower)
	}

	if buyingPower < 0 {
		buyingPower = 0
	}
	factor := buyingPower / totalBuy

	for i := range out {
		if out[i].Side != domain.OrderSideBuy {
			continue
		}
		out[i].Notional *= factor
		out[i].Reason += fmt.Sprintf(" (scaled to %.1f%% to fit buying power)", factor*100)
	}

	message := fmt.Sprintf("buy notional $%.2f exceeds buying power $%.2f, buys scaled to %.1f%%",
		totalBuy, buyingPower, factor*100)
	v.log.Info().
		Float64("total_buy", totalBuy).
		Float64("buying_power", buyingPower).
		Float64("factor", factor).
		Msg("Buy orders scaled to fit buying power")

	return out, message
}
