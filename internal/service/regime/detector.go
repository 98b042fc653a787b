package regime

import (
	"math"

	"StockCast/internal/domain/models"
)

const (
	tradingDaysPerYear = 252
	eps                = 1e-8
)

// Thresholds classify trend strength and volatility into regimes. All
// values come from configuration, never from callers.
type Thresholds struct {
	Window        int
	TrendBull     float64
	TrendBear     float64
	VolatilityLow float64
	VolatilityHi  float64
}

// Detector classifies market condition from recent index-level daily
// returns. Pure function of recent history, recomputed on demand.
type Detector struct {
	th Thresholds
}

func New(th Thresholds) *Detector {
	if th.Window <= 1 {
		th.Window = 20
	}
	return &Detector{th: th}
}

// Detect returns BULL when the trend signal clears the high threshold in a
// calm market, BEAR when it is strongly negative in a turbulent one, and
// SIDEWAYS otherwise. Too little history is always SIDEWAYS.
func (d *Detector) Detect(returns []float64) models.Regime {
	if len(returns) < d.th.Window {
		return models.RegimeSideways
	}
	window := returns[len(returns)-d.th.Window:]

	var sum float64
	for _, r := range window {
		sum += r
	}
	mean := sum / float64(len(window))

	var sse float64
	for _, r := range window {
		dv := r - mean
		sse += dv * dv
	}
	std := math.Sqrt(sse / float64(len(window)-1))

	// Annualized Sharpe-style trend strength and annualized volatility.
	trend := mean / (std + eps) * math.Sqrt(tradingDaysPerYear)
	vol := std * math.Sqrt(tradingDaysPerYear)

	switch {
	case trend > d.th.TrendBull && vol < d.th.VolatilityLow:
		return models.RegimeBull
	case trend < d.th.TrendBear && vol > d.th.VolatilityHi:
		return models.RegimeBear
	default:
		return models.RegimeSideways
	}
}
