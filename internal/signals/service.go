// Package signals fetches market sentiment readings used by strategy
// signal conditions.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultFearGreedURL is the alternative.me crypto fear & greed endpoint.
	DefaultFearGreedURL = "https://api.alternative.me/fng/"

	// Readings are cached briefly; upstream indices update at most daily.
	cacheTTL = 15 * time.Minute
)

// SignalFearGreed is the built-in fear & greed index signal name.
const SignalFearGreed = "fear_greed"

// cachedReading holds a fetched value with its fetch time.
type cachedReading struct {
	value     float64
	raw       string
	fetchedAt time.Time
}

// Service fetches signal values over HTTP with a short in-memory cache.
// If the API fails, stale cached data is returned if available.
type Service struct {
	httpClient   *http.Client
	fearGreedURL string
	log          zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedReading
}

// NewService creates a new signal service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		fearGreedURL: DefaultFearGreedURL,
		log:          log.With().Str("service", "signals").Logger(),
		cache:        make(map[string]cachedReading),
	}
}

// Fetch returns the current value for a condition's signal.
func (s *Service) Fetch(ctx context.Context, cond domain.SignalCondition) (*domain.SignalReading, error) {
	key := cacheKey(cond)

	if reading, ok := s.getFromCache(key, false); ok {
		s.log.Debug().Str("signal", cond.Signal).Float64("value", reading.value).Msg("Cache hit")
		return toReading(cond.Signal, reading), nil
	}

	value, raw, err := s.fetch(ctx, cond)
	if err != nil {
		// API failed - stale data is better than no data
		if stale, ok := s.getFromCache(key, true); ok {
			s.log.Warn().
				Err(err).
				Str("signal", cond.Signal).
				Float64("value", stale.value).
				Msg("Fetch failed, using stale cached reading")
			return toReading(cond.Signal, stale), nil
		}
		return nil, err
	}

	reading := cachedReading{value: value, raw: raw, fetchedAt: time.Now()}
	s.setCache(key, reading)

	s.log.Info().Str("signal", cond.Signal).Float64("value", value).Msg("Fetched signal")
	return toReading(cond.Signal, reading), nil
}

func (s *Service) fetch(ctx context.Context, cond domain.SignalCondition) (float64, string, error) {
	switch {
	case cond.Signal == SignalFearGreed:
		return s.fetchFearGreed(ctx)
	case cond.Config["url"] != "":
		return s.fetchCustomURL(ctx, cond.Config["url"])
	default:
		return 0, "", fmt.Errorf("unknown signal %q and no url configured", cond.Signal)
	}
}

// fngResponse mirrors the alternative.me fear & greed payload.
type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

func (s *Service) fetchFearGreed(ctx context.Context) (float64, string, error) {
	body, err := s.get(ctx, s.fearGreedURL)
	if err != nil {
		return 0, "", err
	}

	var resp fngResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, "", fmt.Errorf("failed to parse fear & greed response: %w", err)
	}
	if len(resp.Data) == 0 {
		return 0, "", fmt.Errorf("fear & greed response contained no data")
	}

	value, err := strconv.ParseFloat(resp.Data[0].Value, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid fear & greed value %q: %w", resp.Data[0].Value, err)
	}

	return value, resp.Data[0].ValueClassification, nil
}

// fetchCustomURL reads a numeric signal from an arbitrary endpoint.
// Accepts either {"value": <number>} or a bare numeric body.
func (s *Service) fetchCustomURL(ctx context.Context, url string) (float64, string, error) {
	body, err := s.get(ctx, url)
	if err != nil {
		return 0, "", err
	}

	var wrapped struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Value != nil {
		return *wrapped.Value, "", nil
	}

	trimmed := strings.TrimSpace(string(body))
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, "", fmt.Errorf("signal endpoint returned non-numeric body: %w", err)
	}

	return value, "", nil
}

func (s *Service) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

func cacheKey(cond domain.SignalCondition) string {
	if url := cond.Config["url"]; url != "" {
		return cond.Signal + ":" + url
	}
	return cond.Signal
}

func toReading(signal string, c cachedReading) *domain.SignalReading {
	return &domain.SignalReading{
		Signal:    signal,
		Value:     c.value,
		Raw:       c.raw,
		FetchedAt: c.fetchedAt,
	}
}

// getFromCache returns a cached reading. With allowStale it ignores the
// TTL so callers can fall back to old data when the API is down.
func (s *Service) getFromCache(key string, allowStale bool) (cachedReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reading, ok := s.cache[key]
	if !ok {
		return cachedReading{}, false
	}
	if !allowStale && time.Since(reading.fetchedAt) > cacheTTL {
		return cachedReading{}, false
	}
	return reading, true
}

func (s *Service) setCache(key string, reading cachedReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = reading
}

// Interface conformance check.
var _ domain.SignalProvider = (*Service)(nil)
