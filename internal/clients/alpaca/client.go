package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const requestTimeout = 30 * time.Second

// Client talks to the Alpaca trading and market data APIs with retry,
// circuit breaking and rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	dataURL    string
	apiKey     string
	apiSecret  string
	limiter    *rate.Limiter
	pipeline   failsafe.Executor[*http.Response]
	log        zerolog.Logger
}

// NewClient creates a new Alpaca API client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	// Retry on network errors, 5xx and 429
	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == 429
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()

	// Open circuit on sustained 5xx errors
	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    cfg.BaseURL,
		dataURL:    cfg.DataURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		// Alpaca allows 200 requests/minute per key
		limiter:  rate.NewLimiter(rate.Limit(200.0/60.0), 10),
		pipeline: failsafe.With[*http.Response](retryPolicy, breaker),
		log:      log.With().Str("client", "alpaca").Logger(),
	}
}

// GetAccount returns the account's equity, buying power and cash.
func (c *Client) GetAccount(ctx context.Context) (*domain.Account, error) {
	body, err := c.get(ctx, c.baseURL+"/v2/account", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	var account accountJSON
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}

	return account.toDomain(), nil
}

// GetPositions returns all open positions. Short positions carry
// negative quantity and market value.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.get(ctx, c.baseURL+"/v2/positions", nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	var raw []positionJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, p.toDomain())
	}

	return positions, nil
}

// GetClock returns the market clock.
func (c *Client) GetClock(ctx context.Context) (*domain.Clock, error) {
	body, err := c.get(ctx, c.baseURL+"/v2/clock", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clock: %w", err)
	}

	var clock clockJSON
	if err := json.Unmarshal(body, &clock); err != nil {
		return nil, fmt.Errorf("failed to decode clock: %w", err)
	}

	return clock.toDomain(), nil
}

// PlaceOrder submits a market order. Exactly one of req.Notional or
// req.Qty must be set.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	payload := orderJSON{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		Type:        string(req.Type),
		TimeInForce: string(req.TimeInForce),
	}
	if payload.Type == "" {
		payload.Type = string(domain.OrderTypeMarket)
	}
	if payload.TimeInForce == "" {
		payload.TimeInForce = string(domain.TimeInForceDay)
	}
	if req.Notional != 0 {
		payload.Notional = formatFloat(req.Notional, 2)
	} else {
		payload.Qty = formatFloat(req.Qty, 9)
	}

	body, err := c.post(ctx, c.baseURL+"/v2/orders", payload)
	if err != nil {
		return nil, err
	}

	var order orderResponseJSON
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	c.log.Debug().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("order_id", order.ID).
		Str("status", order.Status).
		Msg("Order placed")

	return order.toDomain(), nil
}

// get sends a GET request with auth headers and query parameters.
func (c *Client) get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()

	return c.do(req)
}

// post sends a POST request with a JSON body and auth headers.
func (c *Client) post(ctx context.Context, url string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// do executes a request through the rate limiter and resilience
// pipeline, returning the body or an APIError for non-2xx responses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)

	resp, err := c.pipeline.GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return body, nil
}

// Interface conformance check.
var _ domain.BrokerClient = (*Client)(nil)
