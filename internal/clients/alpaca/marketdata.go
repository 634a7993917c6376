package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jtallis/ballast/internal/domain"
)

// GetBars returns up to limit bars for a symbol, oldest first. Equities
// and crypto pairs use different data API routes; crypto symbols are
// recognized by their "/" separator.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	if domain.IsCrypto(symbol) {
		return c.getCryptoBars(ctx, symbol, timeframe, limit)
	}
	return c.getStockBars(ctx, symbol, timeframe, limit)
}

func (c *Client) getStockBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/bars", c.dataURL, symbol)
	params := map[string]string{
		"timeframe":  timeframe,
		"limit":      strconv.Itoa(limit),
		"adjustment": "split",
		"feed":       "iex",
	}

	body, err := c.get(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}

	var resp stockBarsJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode bars for %s: %w", symbol, err)
	}

	return resp.Bars, nil
}

func (c *Client) getCryptoBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	url := c.dataURL + "/v1beta3/crypto/us/bars"
	params := map[string]string{
		"symbols":   symbol,
		"timeframe": timeframe,
		"limit":     strconv.Itoa(limit),
	}

	body, err := c.get(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch crypto bars for %s: %w", symbol, err)
	}

	var resp cryptoBarsJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode crypto bars for %s: %w", symbol, err)
	}

	return resp.Bars[symbol], nil
}

// GetLatestPrice returns the most recent trade price for a symbol.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if domain.IsCrypto(symbol) {
		return c.getCryptoLatestPrice(ctx, symbol)
	}
	return c.getStockLatestPrice(ctx, symbol)
}

func (c *Client) getStockLatestPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, symbol)

	body, err := c.get(ctx, url, map[string]string{"feed": "iex"})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch latest trade for %s: %w", symbol, err)
	}

	var resp latestTradeJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode latest trade for %s: %w", symbol, err)
	}

	if resp.Trade.Price <= 0 {
		return 0, fmt.Errorf("no trade price available for %s", symbol)
	}

	return resp.Trade.Price, nil
}

func (c *Client) getCryptoLatestPrice(ctx context.Context, symbol string) (float64, error) {
	url := c.dataURL + "/v1beta3/crypto/us/latest/trades"

	body, err := c.get(ctx, url, map[string]string{"symbols": symbol})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch latest crypto trade for %s: %w", symbol, err)
	}

	var resp cryptoLatestTradesJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode latest crypto trade for %s: %w", symbol, err)
	}

	trade, ok := resp.Trades[symbol]
	if !ok || trade.Price <= 0 {
		return 0, fmt.Errorf("no trade price available for %s", symbol)
	}

	return trade.Price, nil
}
