package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPRateSource_Rates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/USD" {
			t.Errorf("path = %q, want /USD", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"USD","rates":{"INR":82.0,"EUR":0.9}}`))
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 2*time.Second, zap.NewNop())

	rates, err := source.Rates(context.Background(), "USD")
	if err != nil {
		t.Fatalf("Rates() error = %v", err)
	}
	if rates["INR"] != 82.0 || rates["EUR"] != 0.9 {
		t.Errorf("unexpected rates: %v", rates)
	}
}

func TestHTTPRateSource_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 2*time.Second, zap.NewNop())

	if _, err := source.Rates(context.Background(), "USD"); err == nil {
		t.Fatal("Rates() expected error on 502")
	}
}

func TestHTTPCountryResolver_CurrencyForCountry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name":{"common":"India"},"currencies":{"INR":{}}},
			{"name":{"common":"France"},"currencies":{"EUR":{}}}
		]`))
	}))
	defer server.Close()

	resolver := NewHTTPCountryResolver(server.URL, 2*time.Second, zap.NewNop())
	ctx := context.Background()

	got, err := resolver.CurrencyForCountry(ctx, "india")
	if err != nil {
		t.Fatalf("CurrencyForCountry() error = %v", err)
	}
	if got != "INR" {
		t.Errorf("currency = %q, want INR", got)
	}

	// Unknown countries fall back to USD rather than failing signup.
	got, err = resolver.CurrencyForCountry(ctx, "Atlantis")
	if err != nil {
		t.Fatalf("CurrencyForCountry() error = %v", err)
	}
	if got != "USD" {
		t.Errorf("currency = %q, want USD fallback", got)
	}
}

func TestStaticCountryResolver(t *testing.T) {
	resolver := NewStaticCountryResolver()
	ctx := context.Background()

	cases := []struct {
		country string
		want    string
	}{
		{"India", "INR"},
		{"United States", "USD"},
		{"United Kingdom", "USD"},
		{"Germany", "EUR"},
	}
	for _, tc := range cases {
		got, err := resolver.CurrencyForCountry(ctx, tc.country)
		if err != nil {
			t.Fatalf("CurrencyForCountry(%q) error = %v", tc.country, err)
		}
		if got != tc.want {
			t.Errorf("CurrencyForCountry(%q) = %q, want %q", tc.country, got, tc.want)
		}
	}
}
