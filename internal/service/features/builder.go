package features

import (
	"math"
	"sort"

	"StockCast/internal/domain/models"
)

// eps floors every ratio denominator so a flat or zero series can never
// produce Inf or NaN in the output vector.
const eps = 1e-8

// Schema is the fixed feature order. It is the contract between builder and
// model artifacts; artifacts record it at train time and reject mismatches.
var Schema = []string{
	"sma_5", "sma_10", "sma_20", "sma_60",
	"ema_12", "ema_26", "price_to_sma20",
	"rsi_14",
	"macd", "macd_signal", "macd_hist",
	"bb_position",
	"volume_ratio_20",
	"return_1d", "return_5d", "return_20d",
	"volatility_20", "volatility_60",
	"volatility_rank_60",
	"regime_code",
}

const (
	// DefaultMinHistory is the longest rolling window; shorter series are
	// rejected rather than padded.
	DefaultMinHistory = 60

	volRankWindow     = 60
	volRankMinPeriods = 20
)

// Builder computes leakage-safe rolling features from daily price history.
// Every value at row i depends only on rows <= i.
type Builder struct {
	minHistory int
}

// New creates a Builder. minHistory below the longest window is raised to it.
func New(minHistory int) *Builder {
	if minHistory < DefaultMinHistory {
		minHistory = DefaultMinHistory
	}
	return &Builder{minHistory: minHistory}
}

func (b *Builder) Schema() []string { return append([]string(nil), Schema...) }

func (b *Builder) MinHistory() int { return b.minHistory }

// Build returns the feature vector for the last date of the series.
func (b *Builder) Build(points []*models.PricePoint, regime models.Regime) (*models.FeatureVector, error) {
	vecs, err := b.BuildSeries(points, regime)
	if err != nil {
		return nil, err
	}
	return vecs[len(vecs)-1], nil
}

// BuildSeries returns one vector per row starting at the first row with
// enough trailing history. The input is copied and sorted ascending by date
// before any computation, even if it arrives pre-sorted.
func (b *Builder) BuildSeries(points []*models.PricePoint, regime models.Regime) ([]*models.FeatureVector, error) {
	if len(points) < b.minHistory {
		return nil, models.ErrDataInsufficient
	}

	rows := make([]*models.PricePoint, len(points))
	copy(rows, points)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TradeDate.Before(rows[j].TradeDate) })

	n := len(rows)
	close := make([]float64, n)
	volume := make([]float64, n)
	for i, p := range rows {
		close[i] = p.Close
		volume[i] = p.Volume
	}

	returns := dailyReturns(close)
	sma5 := rollingMean(close, 5)
	sma10 := rollingMean(close, 10)
	sma20 := rollingMean(close, 20)
	sma60 := rollingMean(close, 60)
	ema12 := ema(close, 12)
	ema26 := ema(close, 26)
	rsi14 := rsi(close, 14)
	macdLine := make([]float64, n)
	for i := range macdLine {
		macdLine[i] = ema12[i] - ema26[i]
	}
	macdSignal := ema(macdLine, 9)
	bbMid := sma20
	bbStd := rollingStd(close, 20)
	volSMA20 := rollingMean(volume, 20)
	vol20 := rollingStd(returns, 20)
	vol60 := rollingStd(returns, 60)
	volRank := rollingRank(vol60, volRankWindow, volRankMinPeriods)

	out := make([]*models.FeatureVector, 0, n-b.minHistory+1)
	for i := b.minHistory - 1; i < n; i++ {
		vals := []float64{
			sma5[i], sma10[i], sma20[i], sma60[i],
			ema12[i], ema26[i],
			close[i] / (sma20[i] + eps),
			rsi14[i],
			macdLine[i], macdSignal[i], macdLine[i] - macdSignal[i],
			clip((close[i]-bbMid[i])/(2*bbStd[i]+eps), -2, 3),
			volume[i] / (volSMA20[i] + eps),
			lookback(returns, i, 1),
			lookback(returns, i, 5),
			lookback(returns, i, 20),
			vol20[i], vol60[i],
			volRank[i],
			regime.Code(),
		}
		sanitize(vals)
		out = append(out, &models.FeatureVector{
			StockID:  rows[i].StockID,
			AsOfDate: rows[i].TradeDate,
			Names:    Schema,
			Values:   vals,
		})
	}
	return out, nil
}

// dailyReturns is r_t = C_t/C_{t-1} - 1, with r_0 = 0.
func dailyReturns(close []float64) []float64 {
	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		out[i] = (close[i] - close[i-1]) / (close[i-1] + eps)
	}
	return out
}

// lookback is the cumulative return over the trailing horizon ending at i.
func lookback(returns []float64, i, horizon int) float64 {
	if i-horizon < 0 {
		return 0
	}
	prod := 1.0
	for k := i - horizon + 1; k <= i; k++ {
		prod *= 1 + returns[k]
	}
	return prod - 1
}

func rollingMean(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= window {
			sum -= x[i-window]
		}
		w := window
		if i+1 < window {
			w = i + 1
		}
		out[i] = sum / float64(w)
	}
	return out
}

func rollingStd(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < 2 {
			continue
		}
		var sum float64
		for k := lo; k <= i; k++ {
			sum += x[k]
		}
		mean := sum / float64(n)
		var sse float64
		for k := lo; k <= i; k++ {
			d := x[k] - mean
			sse += d * d
		}
		out[i] = math.Sqrt(sse / float64(n-1))
	}
	return out
}

func ema(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi is the standard 14-style oscillator on simple rolling averages of
// gains and losses.
func rsi(close []float64, window int) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		lo := i - window + 1
		if lo < 1 {
			lo = 1
		}
		if i < 1 {
			out[i] = 50
			continue
		}
		var gain, loss float64
		n := 0
		for k := lo; k <= i; k++ {
			d := close[k] - close[k-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			n++
		}
		if n == 0 {
			out[i] = 50
			continue
		}
		avgGain := gain / float64(n)
		avgLoss := loss / float64(n)
		rs := avgGain / (avgLoss + eps)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// rollingRank is the trailing percentile of x[i] within its own window.
// Below minPeriods of history the rank is a neutral 0.5. A whole-series
// rank would leak future rows into past values and is deliberately not
// offered.
func rollingRank(x []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < minPeriods {
			out[i] = 0.5
			continue
		}
		rank := 0
		for k := lo; k <= i; k++ {
			if x[k] <= x[i] {
				rank++
			}
		}
		out[i] = float64(rank) / float64(n)
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize replaces NaN and Inf in place with 0, applied identically at
// train and predict time.
func sanitize(vals []float64) {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[i] = 0
		}
	}
}
