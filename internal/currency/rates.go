package currency

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"context"

	"go.uber.org/zap"
)

// HTTPRateSource fetches exchange rates from a public REST endpoint
// (api.exchangerate-api.com format: GET {baseURL}/{base} -> {"rates": {...}}).
type HTTPRateSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPRateSource creates a rate source backed by the exchange-rate API
func NewHTTPRateSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPRateSource {
	return &HTTPRateSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Rates fetches the rate table for a base currency
func (s *HTTPRateSource) Rates(ctx context.Context, base string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates request for %s returned status %d", base, resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}

	s.logger.Debug("Fetched exchange rates",
		zap.String("base", base),
		zap.Int("count", len(payload.Rates)))
	return payload.Rates, nil
}

// StaticRateSource serves a fixed rate table regardless of base currency,
// with the base itself always mapping to 1. Used when external lookups are
// disabled.
type StaticRateSource struct {
	rates map[string]float64
}

// NewStaticRateSource creates a static rate source with a fixed offline
// table.
func NewStaticRateSource() *StaticRateSource {
	return &StaticRateSource{
		rates: map[string]float64{
			"USD": 1.0,
			"EUR": 0.9,
			"INR": 82.0,
		},
	}
}

// Rates returns the fixed table with the base pinned at 1.0
func (s *StaticRateSource) Rates(_ context.Context, base string) (map[string]float64, error) {
	out := make(map[string]float64, len(s.rates)+1)
	for code, rate := range s.rates {
		out[code] = rate
	}
	out[base] = 1.0
	return out, nil
}
