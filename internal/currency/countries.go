package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CountryResolver maps a country name to its currency code, used at company
// signup to pick the base currency.
type CountryResolver interface {
	CurrencyForCountry(ctx context.Context, country string) (string, error)
}

// HTTPCountryResolver resolves currencies via the restcountries API.
type HTTPCountryResolver struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPCountryResolver creates a resolver backed by restcountries
func NewHTTPCountryResolver(url string, timeout time.Duration, logger *zap.Logger) *HTTPCountryResolver {
	return &HTTPCountryResolver{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// CurrencyForCountry looks up the first currency listed for the named
// country, falling back to USD when the country is unknown.
func (r *HTTPCountryResolver) CurrencyForCountry(ctx context.Context, country string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build countries request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch countries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("countries request returned status %d", resp.StatusCode)
	}

	var countries []struct {
		Name struct {
			Common string `json:"common"`
		} `json:"name"`
		Currencies map[string]json.RawMessage `json:"currencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countries); err != nil {
		return "", fmt.Errorf("failed to decode countries response: %w", err)
	}

	for _, c := range countries {
		if !strings.EqualFold(c.Name.Common, country) {
			continue
		}
		for code := range c.Currencies {
			return code, nil
		}
	}

	r.logger.Warn("Country not found, defaulting to USD", zap.String("country", country))
	return "USD", nil
}

// StaticCountryResolver uses a fixed mapping: countries containing "India"
// get INR, "United" get USD, everything else EUR.
type StaticCountryResolver struct{}

// NewStaticCountryResolver creates the offline resolver
func NewStaticCountryResolver() *StaticCountryResolver {
	return &StaticCountryResolver{}
}

// CurrencyForCountry resolves from the fixed mapping; it never fails
func (r *StaticCountryResolver) CurrencyForCountry(_ context.Context, country string) (string, error) {
	switch {
	case strings.Contains(country, "India"):
		return "INR", nil
	case strings.Contains(country, "United"):
		return "USD", nil
	default:
		return "EUR", nil
	}
}
