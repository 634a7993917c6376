package domain

import "context"

// BrokerClient defines broker-agnostic account, market data and trading
// operations. The orchestrator and market data service depend on this
// interface rather than on a concrete venue adapter.
type BrokerClient interface {
	// Account operations
	GetAccount(ctx context.Context) (*Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetClock(ctx context.Context) (*Clock, error)

	// Market data operations
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)

	// Trading operations
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// SignalProvider fetches external indicator readings for signal conditions
type SignalProvider interface {
	Fetch(ctx context.Context, cond SignalCondition) (*SignalReading, error)
}

// BarProvider supplies daily bars to the ranking engine. Implementations
// may cache; the engine does not care.
type BarProvider interface {
	GetDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]Bar, error)
}
