package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"StockCast/internal/domain/models"
)

func syntheticSeries(n int, seed int64) []*models.PricePoint {
	rng := rand.New(rand.NewSource(seed))
	points := make([]*models.PricePoint, n)
	price := 100.0
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price *= 1 + 0.02*(rng.Float64()-0.5)
		points[i] = &models.PricePoint{
			StockID:   "TEST",
			Region:    "US",
			TradeDate: day,
			Open:      price * 0.99,
			High:      price * 1.01,
			Low:       price * 0.98,
			Close:     price,
			Volume:    1e6 * (0.5 + rng.Float64()),
		}
		day = day.AddDate(0, 0, 1)
	}
	return points
}

func TestInsufficientHistory(t *testing.T) {
	b := New(60)
	_, err := b.Build(syntheticSeries(30, 1), models.RegimeSideways)
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
}

func TestNoLookAhead(t *testing.T) {
	b := New(60)
	full := syntheticSeries(120, 2)

	// Features at day 80 must be identical whether or not days 81..120 exist.
	truncated := full[:80]
	fullVecs, err := b.BuildSeries(full, models.RegimeBull)
	if err != nil {
		t.Fatalf("full build: %v", err)
	}
	truncVecs, err := b.BuildSeries(truncated, models.RegimeBull)
	if err != nil {
		t.Fatalf("truncated build: %v", err)
	}

	last := truncVecs[len(truncVecs)-1]
	var match *models.FeatureVector
	for _, v := range fullVecs {
		if v.AsOfDate.Equal(last.AsOfDate) {
			match = v
			break
		}
	}
	if match == nil {
		t.Fatalf("no matching date in full series")
	}
	for i := range last.Values {
		if last.Values[i] != match.Values[i] {
			t.Fatalf("feature %s differs with future data present: %v vs %v",
				last.Names[i], last.Values[i], match.Values[i])
		}
	}
}

func TestZeroVolatilityStable(t *testing.T) {
	points := syntheticSeries(80, 3)
	for _, p := range points {
		p.Close = 100 // perfectly flat series, zero trailing volatility
		p.Open, p.High, p.Low = 100, 100, 100
		p.Volume = 0
	}
	b := New(60)
	vec, err := b.Build(points, models.RegimeSideways)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i, v := range vec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("feature %s is not finite: %v", vec.Names[i], v)
		}
	}
}

func TestUnsortedInputSorted(t *testing.T) {
	b := New(60)
	points := syntheticSeries(90, 4)
	want, err := b.Build(points, models.RegimeBear)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	shuffled := make([]*models.PricePoint, len(points))
	copy(shuffled, points)
	rand.New(rand.NewSource(9)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	got, err := b.Build(shuffled, models.RegimeBear)
	if err != nil {
		t.Fatalf("build shuffled: %v", err)
	}
	for i := range want.Values {
		if want.Values[i] != got.Values[i] {
			t.Fatalf("feature %s depends on input order", want.Names[i])
		}
	}
}

func TestBollingerPositionClipped(t *testing.T) {
	b := New(60)
	points := syntheticSeries(80, 5)
	// Spike the final close far above the band.
	points[len(points)-1].Close *= 100
	vec, err := b.Build(points, models.RegimeBull)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	idx := -1
	for i, n := range vec.Names {
		if n == "bb_position" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("bb_position missing from schema")
	}
	if vec.Values[idx] < -2 || vec.Values[idx] > 3 {
		t.Fatalf("bb_position not clipped: %v", vec.Values[idx])
	}
}

func TestVolatilityRankIsTrailing(t *testing.T) {
	x := make([]float64, 200)
	for i := range x {
		x[i] = float64(i) // strictly increasing volatility
	}
	ranks := rollingRank(x, 60, 20)
	// With ever-increasing values every fully windowed rank is 1.0: the
	// current value is always the max of its trailing window.
	if ranks[199] != 1.0 {
		t.Fatalf("trailing rank of running max should be 1.0, got %v", ranks[199])
	}
	// Below min periods the rank is neutral.
	if ranks[5] != 0.5 {
		t.Fatalf("rank before min periods should be 0.5, got %v", ranks[5])
	}
}

func TestRegimeCodeIncluded(t *testing.T) {
	b := New(60)
	points := syntheticSeries(70, 6)
	bull, err := b.Build(points, models.RegimeBull)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	bear, err := b.Build(points, models.RegimeBear)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	last := len(bull.Values) - 1
	if bull.Names[last] != "regime_code" {
		t.Fatalf("regime_code must be the final feature")
	}
	if bull.Values[last] != 1 || bear.Values[last] != -1 {
		t.Fatalf("regime codes wrong: bull=%v bear=%v", bull.Values[last], bear.Values[last])
	}
}
