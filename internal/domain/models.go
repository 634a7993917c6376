// Package domain provides core domain models and types.
package domain

import "time"

// Side represents which side of the book a ranked symbol targets
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderSide represents the direction of a rebalance order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the terminal status of a placed (or skipped) order
type OrderStatus string

const (
	// OrderStatusSuccess - the broker accepted the order
	OrderStatusSuccess OrderStatus = "success"
	// OrderStatusFailed - placement was attempted and rejected
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusSkipped - the order was never sent (conflict, zero quantity)
	OrderStatusSkipped OrderStatus = "skipped"
	// OrderStatusSimulated - dry-run outcome, nothing was sent
	OrderStatusSimulated OrderStatus = "simulated"
)

// RunState tracks the orchestrator state machine through one execution
type RunState string

const (
	RunStateIdle             RunState = "idle"
	RunStateFetchingContext  RunState = "fetching_context"
	RunStateRanking          RunState = "ranking"
	RunStateTargeting        RunState = "targeting"
	RunStateGeneratingOrders RunState = "generating_orders"
	RunStateValidating       RunState = "validating"
	RunStatePlacing          RunState = "placing"
	RunStateRecording        RunState = "recording"
	RunStateDone             RunState = "done"
	RunStateFailed           RunState = "failed"
)

// RankedSymbol is one symbol scored and sided by the ranking engine.
// Produced fresh each run and never persisted.
type RankedSymbol struct {
	Symbol  string             `json:"symbol"`
	Side    Side               `json:"side"`
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Position is a broker position snapshot. Quantity and market value are
// signed: negative means short.
type Position struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	MarketValue  float64 `json:"market_value"`
	CurrentPrice float64 `json:"current_price"`
}

// TargetPosition is the desired allocation for one symbol after a run.
// TargetWeight is signed by side and its magnitude never exceeds the
// configured per-symbol cap; TargetValue is negative for shorts.
type TargetPosition struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	TargetWeight  float64 `json:"target_weight"`
	TargetValue   float64 `json:"target_value"`
	CurrentValue  float64 `json:"current_value"`
	CurrentShares float64 `json:"current_shares"`
	Score         float64 `json:"score"`
}

// RebalanceOrder is one step toward a target, expressed as a notional
// dollar amount. Reason is an audit string describing direction, side,
// target weight and step size.
type RebalanceOrder struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Notional      float64   `json:"notional"`
	Reason        string    `json:"reason"`
	IsShortTarget bool      `json:"is_short_target"`
}

// OrderOutcome captures what happened to a single rebalance order
type OrderOutcome struct {
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Status        OrderStatus `json:"status"`
	Reason        string      `json:"reason"`
	Message       string      `json:"message,omitempty"`
	Notional      float64     `json:"notional"`
	Qty           float64     `json:"qty,omitempty"`
	BrokerOrderID string      `json:"broker_order_id,omitempty"`
}

// ExecutionResult summarizes one orchestration run. The shape is identical
// for dry-run and live execution; only order statuses differ.
type ExecutionResult struct {
	ExecutionID  string         `json:"execution_id,omitempty"`
	StrategyID   string         `json:"strategy_id"`
	UserID       string         `json:"user_id"`
	State        RunState       `json:"state"`
	Success      bool           `json:"success"`
	DryRun       bool           `json:"dry_run"`
	MarketOpen   bool           `json:"market_open"`
	OrdersPlaced int            `json:"orders_placed"`
	OrdersFailed int            `json:"orders_failed"`
	TotalBought  float64        `json:"total_bought"`
	TotalSold    float64        `json:"total_sold"`
	NetChange    float64        `json:"net_change"`
	Error        string         `json:"error,omitempty"`
	Orders       []OrderOutcome `json:"orders"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// SignalReading is one fetched external indicator value
type SignalReading struct {
	Signal    string    `json:"signal"`
	Value     float64   `json:"value"`
	Raw       string    `json:"raw,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
