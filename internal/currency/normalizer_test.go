package currency

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubRateSource struct {
	rates map[string]float64
	err   error
	calls int
}

func (s *stubRateSource) Rates(ctx context.Context, base string) (map[string]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func TestNormalizer_Normalize(t *testing.T) {
	ctx := context.Background()

	t.Run("converts through the rate table", func(t *testing.T) {
		source := &stubRateSource{rates: map[string]float64{"INR": 82}}
		n := NewNormalizer(source, zap.NewNop())

		if got := n.Normalize(ctx, 100, "USD", "INR"); got != 8200 {
			t.Errorf("Normalize(100 USD -> INR) = %v, want 8200", got)
		}
	})

	t.Run("same currency skips the lookup entirely", func(t *testing.T) {
		source := &stubRateSource{rates: map[string]float64{"USD": 0.99}}
		n := NewNormalizer(source, zap.NewNop())

		if got := n.Normalize(ctx, 123.45, "USD", "USD"); got != 123.45 {
			t.Errorf("Normalize(same currency) = %v, want 123.45", got)
		}
		if source.calls != 0 {
			t.Errorf("rate source called %d times, want 0", source.calls)
		}
	})

	t.Run("missing target rate falls back to 1:1", func(t *testing.T) {
		source := &stubRateSource{rates: map[string]float64{"EUR": 0.9}}
		n := NewNormalizer(source, zap.NewNop())

		if got := n.Normalize(ctx, 100, "USD", "INR"); got != 100 {
			t.Errorf("Normalize(missing rate) = %v, want 100", got)
		}
	})

	t.Run("rate source fault falls back to 1:1", func(t *testing.T) {
		source := &stubRateSource{err: errors.New("upstream timeout")}
		n := NewNormalizer(source, zap.NewNop())

		if got := n.Normalize(ctx, 250, "USD", "INR"); got != 250 {
			t.Errorf("Normalize(faulting source) = %v, want 250", got)
		}
	})
}

func TestStaticRateSource(t *testing.T) {
	source := NewStaticRateSource()

	rates, err := source.Rates(context.Background(), "GBP")
	if err != nil {
		t.Fatalf("Rates() error = %v", err)
	}
	if rates["GBP"] != 1.0 {
		t.Errorf("base rate = %v, want 1.0", rates["GBP"])
	}
	if rates["INR"] == 0 {
		t.Error("expected a static INR rate")
	}
}
