// Package currency converts submitted amounts into a company's base currency.
//
// Conversion is deliberately lossy on failure: when the rate source faults or
// the rate table lacks the target currency, the original amount passes through
// 1:1 instead of failing the submission. Availability wins over accuracy here;
// a missing rate must never block an expense from being filed.
package currency

import (
	"context"

	"go.uber.org/zap"
)

// RateSource supplies exchange rates for a base currency. The returned map is
// keyed by currency code, with values in units of that currency per one unit
// of the base. Implementations may fail transiently.
type RateSource interface {
	Rates(ctx context.Context, base string) (map[string]float64, error)
}

// Normalizer converts amounts between currencies using an injected rate source.
type Normalizer struct {
	source RateSource
	logger *zap.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(source RateSource, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		source: source,
		logger: logger,
	}
}

// Normalize converts amount from one currency to another. Same-currency
// conversions return the amount exactly, with no rate lookup and no rounding
// drift. A rate-source fault or a missing rate falls back to 1:1; this method
// never returns an error.
func (n *Normalizer) Normalize(ctx context.Context, amount float64, fromCurrency, toCurrency string) float64 {
	if fromCurrency == toCurrency {
		return amount
	}

	rates, err := n.source.Rates(ctx, fromCurrency)
	if err != nil {
		n.logger.Warn("Rate source unavailable, falling back to 1:1 conversion",
			zap.String("from", fromCurrency),
			zap.String("to", toCurrency),
			zap.Error(err))
		return amount
	}

	rate, ok := rates[toCurrency]
	if !ok {
		n.logger.Warn("No rate for target currency, falling back to 1:1 conversion",
			zap.String("from", fromCurrency),
			zap.String("to", toCurrency))
		return amount
	}

	return amount * rate
}
