// Package alpaca implements the Alpaca trading and market data REST API
// client plus the trade updates stream.
package alpaca

import (
	"strconv"
	"time"

	"github.com/jtallis/ballast/internal/domain"
)

// Config holds connection settings for the Alpaca API.
type Config struct {
	BaseURL   string // Trading API, e.g. https://paper-api.alpaca.markets
	DataURL   string // Market data API, e.g. https://data.alpaca.markets
	StreamURL string // Trade updates stream, e.g. wss://paper-api.alpaca.markets/stream
	APIKey    string
	APISecret string
}

// accountJSON mirrors GET /v2/account. Alpaca serializes money fields
// as strings.
type accountJSON struct {
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
	Cash        string `json:"cash"`
	LastEquity  string `json:"last_equity"`
}

func (a accountJSON) toDomain() *domain.Account {
	return &domain.Account{
		Equity:      parseFloat(a.Equity),
		BuyingPower: parseFloat(a.BuyingPower),
		Cash:        parseFloat(a.Cash),
		LastEquity:  parseFloat(a.LastEquity),
	}
}

// positionJSON mirrors entries of GET /v2/positions.
type positionJSON struct {
	Symbol       string `json:"symbol"`
	Qty          string `json:"qty"`
	MarketValue  string `json:"market_value"`
	CurrentPrice string `json:"current_price"`
	Side         string `json:"side"` // "long" or "short"
}

func (p positionJSON) toDomain() domain.Position {
	return domain.Position{
		Symbol:       p.Symbol,
		Qty:          parseFloat(p.Qty),
		MarketValue:  parseFloat(p.MarketValue),
		CurrentPrice: parseFloat(p.CurrentPrice),
	}
}

// clockJSON mirrors GET /v2/clock.
type clockJSON struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

func (c clockJSON) toDomain() *domain.Clock {
	return &domain.Clock{
		IsOpen:    c.IsOpen,
		NextOpen:  c.NextOpen,
		NextClose: c.NextClose,
	}
}

// stockBarsJSON mirrors GET /v2/stocks/{symbol}/bars. Bar fields match
// domain.Bar's JSON tags (t, o, h, l, c, v) so bars decode directly.
type stockBarsJSON struct {
	Bars          []domain.Bar `json:"bars"`
	NextPageToken *string      `json:"next_page_token"`
}

// cryptoBarsJSON mirrors GET /v1beta3/crypto/us/bars, keyed by symbol.
type cryptoBarsJSON struct {
	Bars map[string][]domain.Bar `json:"bars"`
}

// latestTradeJSON mirrors GET /v2/stocks/{symbol}/trades/latest.
type latestTradeJSON struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

// cryptoLatestTradesJSON mirrors GET /v1beta3/crypto/us/latest/trades.
type cryptoLatestTradesJSON struct {
	Trades map[string]struct {
		Price float64 `json:"p"`
	} `json:"trades"`
}

// orderJSON is the request body for POST /v2/orders. Notional and Qty
// are mutually exclusive; Alpaca accepts numeric strings.
type orderJSON struct {
	Symbol      string `json:"symbol"`
	Notional    string `json:"notional,omitempty"`
	Qty         string `json:"qty,omitempty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

// orderResponseJSON mirrors the order object Alpaca returns.
type orderResponseJSON struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	FilledQty      *string `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
}

func (o orderResponseJSON) toDomain() *domain.OrderResult {
	result := &domain.OrderResult{
		ID:     o.ID,
		Status: o.Status,
	}
	if o.FilledQty != nil {
		result.FilledQty = parseFloat(*o.FilledQty)
	}
	if o.FilledAvgPrice != nil {
		result.FilledAvgPrice = parseFloat(*o.FilledAvgPrice)
	}
	return result
}

// parseFloat converts Alpaca's string numbers, treating empty or
// malformed values as zero.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// formatFloat renders a float for Alpaca request bodies. Two decimal
// places for notional amounts keeps the API happy.
func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}
