package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/jtallis/ballast/internal/domain"
)

// MockBrokerClient is an in-memory implementation of domain.BrokerClient.
// All fields are guarded by a mutex so tests can mutate state while the
// code under test runs concurrently.
type MockBrokerClient struct {
	mu sync.RWMutex

	account   domain.Account
	positions []domain.Position
	clock     domain.Clock
	bars      map[string][]domain.Bar
	prices    map[string]float64

	placed      []domain.OrderRequest
	placeErr    map[string]error
	notionalErr map[string]error
	err         error
	orderSeq    int
	fillPrices  map[string]float64
}

// NewMockBrokerClient creates a mock broker with an open market and an
// empty book.
func NewMockBrokerClient() *MockBrokerClient {
	return &MockBrokerClient{
		clock:       domain.Clock{IsOpen: true},
		bars:        make(map[string][]domain.Bar),
		prices:      make(map[string]float64),
		placeErr:    make(map[string]error),
		notionalErr: make(map[string]error),
		fillPrices:  make(map[string]float64),
	}
}

// SetAccount sets the account snapshot returned by GetAccount.
func (m *MockBrokerClient) SetAccount(a domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = a
}

// SetPositions sets the open positions returned by GetPositions.
func (m *MockBrokerClient) SetPositions(ps []domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = ps
}

// SetClock sets the market clock returned by GetClock.
func (m *MockBrokerClient) SetClock(c domain.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = c
}

// SetBars sets the daily bars returned by GetBars for a symbol.
func (m *MockBrokerClient) SetBars(symbol string, bars []domain.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetPrice sets the latest trade price for a symbol.
func (m *MockBrokerClient) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetError makes every call return err until cleared with nil.
func (m *MockBrokerClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPlaceOrderError makes PlaceOrder fail for a specific symbol.
func (m *MockBrokerClient) SetPlaceOrderError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeErr[symbol] = err
}

// SetNotionalOrderError makes PlaceOrder fail for a symbol only when the
// request is notional. Whole-share orders for the symbol still succeed,
// mimicking a venue that rejects fractional orders for some assets.
func (m *MockBrokerClient) SetNotionalOrderError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notionalErr[symbol] = err
}

// PlacedOrders returns a copy of every order request placed so far.
func (m *MockBrokerClient) PlacedOrders() []domain.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.OrderRequest, len(m.placed))
	copy(out, m.placed)
	return out
}

// GetAccount returns the configured account snapshot.
func (m *MockBrokerClient) GetAccount(ctx context.Context) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	a := m.account
	return &a, nil
}

// GetPositions returns the configured open positions.
func (m *MockBrokerClient) GetPositions(ctx context.Context) ([]domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

// GetClock returns the configured market clock.
func (m *MockBrokerClient) GetClock(ctx context.Context) (*domain.Clock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.clock
	return &c, nil
}

// GetBars returns the configured bars for a symbol, truncated to limit.
func (m *MockBrokerClient) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	bars := m.bars[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetLatestPrice returns the configured latest price for a symbol.
func (m *MockBrokerClient) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price configured for %s", symbol)
	}
	return price, nil
}

// PlaceOrder records the request and returns a synthetic fill.
func (m *MockBrokerClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.placeErr[req.Symbol]; ok && err != nil {
		return nil, err
	}
	if err, ok := m.notionalErr[req.Symbol]; ok && err != nil && req.Notional > 0 {
		return nil, err
	}
	m.placed = append(m.placed, req)
	m.orderSeq++
	return &domain.OrderResult{
		ID:     fmt.Sprintf("mock-order-%d", m.orderSeq),
		Status: "accepted",
	}, nil
}

// MockSignalProvider is an in-memory implementation of domain.SignalProvider.
type MockSignalProvider struct {
	mu       sync.RWMutex
	readings map[string]float64
	err      error
}

// NewMockSignalProvider creates an empty mock signal provider.
func NewMockSignalProvider() *MockSignalProvider {
	return &MockSignalProvider{readings: make(map[string]float64)}
}

// SetReading sets the value returned for a signal name.
func (m *MockSignalProvider) SetReading(signal string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[signal] = value
}

// SetError makes Fetch return err until cleared with nil.
func (m *MockSignalProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Fetch returns the configured reading for the condition's signal.
func (m *MockSignalProvider) Fetch(ctx context.Context, cond domain.SignalCondition) (*domain.SignalReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	value, ok := m.readings[cond.Signal]
	if !ok {
		return nil, fmt.Errorf("no reading configured for signal %s", cond.Signal)
	}
	return &domain.SignalReading{Signal: cond.Signal, Value: value}, nil
}

// MockBarProvider is an in-memory implementation of domain.BarProvider.
type MockBarProvider struct {
	mu   sync.RWMutex
	bars map[string][]domain.Bar
	err  error
}

// NewMockBarProvider creates an empty mock bar provider.
func NewMockBarProvider() *MockBarProvider {
	return &MockBarProvider{bars: make(map[string][]domain.Bar)}
}

// SetBars sets the daily bars returned for a symbol.
func (m *MockBarProvider) SetBars(symbol string, bars []domain.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetError makes GetDailyBars return err until cleared with nil.
func (m *MockBarProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetDailyBars returns the configured bars for a symbol.
func (m *MockBarProvider) GetDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]domain.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	bars, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no bars configured for %s", symbol)
	}
	if lookbackDays > 0 && len(bars) > lookbackDays {
		bars = bars[len(bars)-lookbackDays:]
	}
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// Interface conformance checks.
var (
	_ domain.BrokerClient   = (*MockBrokerClient)(nil)
	_ domain.SignalProvider = (*MockSignalProvider)(nil)
	_ domain.BarProvider    = (*MockBarProvider)(nil)
)
