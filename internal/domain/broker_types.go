package domain

import "time"

// Broker-agnostic types. The orchestrator and market data service consume
// these; the Alpaca client (or any other venue adapter) produces them.

// Account represents the broker account snapshot
type Account struct {
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
	Cash        float64 `json:"cash"`
	LastEquity  float64 `json:"last_equity"`
}

// Clock represents the venue market clock
type Clock struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// Bar is a single OHLCV candle
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// OrderType represents the broker order type
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce represents how long an order stays working
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

// OrderRequest is a broker order. Exactly one of Notional or Qty is set:
// notional orders are dollar-denominated (fractional fills allowed), qty
// orders are whole-share.
type OrderRequest struct {
	Symbol      string      `json:"symbol"`
	Notional    float64     `json:"notional,omitempty"`
	Qty         float64     `json:"qty,omitempty"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	TimeInForce TimeInForce `json:"time_in_force"`
}

// OrderResult is the broker's acknowledgement of a placed order
type OrderResult struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	FilledQty      float64 `json:"filled_qty"`
	FilledAvgPrice float64 `json:"filled_avg_price"`
}
