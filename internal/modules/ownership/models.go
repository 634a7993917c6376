// Package ownership derives which symbols a strategy owns from the
// append-only order ledger and records executed runs into it.
package ownership

import (
	"time"

	"github.com/jtallis/ballast/internal/domain"
)

// LedgerOrder is one appended order row. Rows are never updated; ownership
// is always derived by replaying them in order.
type LedgerOrder struct {
	ID            int64              `json:"id"`
	ExecutionID   string             `json:"execution_id"`
	UserID        string             `json:"user_id"`
	StrategyID    string             `json:"strategy_id"`
	Symbol        string             `json:"symbol"`
	Side          domain.OrderSide   `json:"side"`
	Notional      float64            `json:"notional"`
	Qty           float64            `json:"qty,omitempty"`
	Status        domain.OrderStatus `json:"status"`
	Reason        string             `json:"reason"`
	Message       string             `json:"message,omitempty"`
	BrokerOrderID string             `json:"broker_order_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// LongHeldOutsideStrategy reports whether the account holds a long position
// in symbol that the given strategy does not own. Opening a short against
// such a position would be interpreted by the broker as selling another
// strategy's long, so the caller must skip it.
func LongHeldOutsideStrategy(symbol string, positions []domain.Position, owned map[string]bool) bool {
	key := domain.NormalizeSymbol(symbol)
	if owned[key] {
		return false
	}
	for _, pos := range positions {
		if pos.Qty > 0 && domain.NormalizeSymbol(pos.Symbol) == key {
			return true
		}
	}
	return false
}
