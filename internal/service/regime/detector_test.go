package regime

import (
	"math/rand"
	"testing"

	"StockCast/internal/domain/models"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		Window:        20,
		TrendBull:     3.0,
		TrendBear:     -3.0,
		VolatilityLow: 0.25,
		VolatilityHi:  0.40,
	}
}

func TestDetectBull(t *testing.T) {
	d := New(defaultThresholds())
	rng := rand.New(rand.NewSource(1))
	returns := make([]float64, 40)
	for i := range returns {
		// steady positive drift, tiny noise: strong calm uptrend
		returns[i] = 0.004 + 0.001*(rng.Float64()-0.5)
	}
	if got := d.Detect(returns); got != models.RegimeBull {
		t.Fatalf("expected BULL, got %s", got)
	}
}

func TestDetectBear(t *testing.T) {
	d := New(defaultThresholds())
	rng := rand.New(rand.NewSource(2))
	returns := make([]float64, 40)
	for i := range returns {
		// strong negative drift with high volatility
		returns[i] = -0.03 + 0.1*(rng.Float64()-0.5)
	}
	if got := d.Detect(returns); got != models.RegimeBear {
		t.Fatalf("expected BEAR, got %s", got)
	}
}

func TestDetectSideways(t *testing.T) {
	d := New(defaultThresholds())
	rng := rand.New(rand.NewSource(3))
	returns := make([]float64, 40)
	for i := range returns {
		// volatility between the low and high thresholds rules out both
		// BULL and BEAR whatever the drift does
		returns[i] = 0.06 * (rng.Float64() - 0.5)
	}
	if got := d.Detect(returns); got != models.RegimeSideways {
		t.Fatalf("expected SIDEWAYS, got %s", got)
	}
}

func TestDetectShortHistory(t *testing.T) {
	d := New(defaultThresholds())
	if got := d.Detect([]float64{0.01, 0.02}); got != models.RegimeSideways {
		t.Fatalf("short history must be SIDEWAYS, got %s", got)
	}
}
