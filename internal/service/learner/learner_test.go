package learner

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

type fakeLedger struct {
	matured  []*models.Prediction
	outcomes []*models.Outcome
}

func (f *fakeLedger) Record(context.Context, *models.Prediction) error { return nil }
func (f *fakeLedger) RecordOutcome(_ context.Context, o *models.Outcome) error {
	f.outcomes = append(f.outcomes, o)
	return nil
}
func (f *fakeLedger) Matured(context.Context, string, time.Time) ([]*models.Prediction, error) {
	return f.matured, nil
}
func (f *fakeLedger) TopForDate(context.Context, string, time.Time, int) ([]*models.Prediction, error) {
	return nil, nil
}

type fakeActuals struct{ returns map[string]float64 }

func (f *fakeActuals) RealizedReturn(_ context.Context, stockID string, _, _ time.Time) (float64, bool, error) {
	r, ok := f.returns[stockID]
	return r, ok, nil
}

type fakePerf struct{ records []*models.PerformanceRecord }

func (f *fakePerf) Append(_ context.Context, rec *models.PerformanceRecord) error {
	f.records = append(f.records, rec)
	return nil
}
func (f *fakePerf) Recent(context.Context, string, int) ([]*models.PerformanceRecord, error) {
	return f.records, nil
}

type fakePrices struct{ returns []float64 }

func (f *fakePrices) Init(context.Context) error                              { return nil }
func (f *fakePrices) StoreBatch(context.Context, []*models.PricePoint) error  { return nil }
func (f *fakePrices) History(context.Context, string, time.Time, time.Time) ([]*models.PricePoint, error) {
	return nil, nil
}
func (f *fakePrices) RegionStocks(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakePrices) IndexReturns(context.Context, string, int) ([]float64, error) {
	return f.returns, nil
}
func (f *fakePrices) Health(context.Context) error { return nil }
func (f *fakePrices) Close() error                 { return nil }

type fixedRegime struct{ r models.Regime }

func (f fixedRegime) Detect([]float64) models.Regime { return f.r }

type noopMetrics struct{}

func (noopMetrics) RecordPrediction(string, int)        {}
func (noopMetrics) RecordCycle(string, string, float64) {}
func (noopMetrics) RecordError(string)                  {}
func (noopMetrics) RecordAccuracy(string, float64)      {}
func (noopMetrics) RecordModelVersion(string, int64)    {}
func (noopMetrics) RecordLastPrice(string, float64)     {}

func learnerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Learner.RetrainBelow = 0.50
	cfg.Learner.FineTuneBelow = 0.55
	cfg.Learner.FlatBand = 0.5
	cfg.Learner.MinSamples = 2
	cfg.Regime.Window = 20
	return cfg
}

func newLearner(ledger *fakeLedger, actuals *fakeActuals, perf *fakePerf) *Learner {
	lgr, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	return New(learnerConfig(), ledger, actuals, perf, &fakePrices{}, fixedRegime{models.RegimeSideways}, noopMetrics{}, lgr)
}

func TestDecisionThresholds(t *testing.T) {
	l := newLearner(&fakeLedger{}, &fakeActuals{}, &fakePerf{})
	cases := []struct {
		accuracy float64
		want     models.LearnerAction
	}{
		{0.45, models.ActionRetrain},
		{0.52, models.ActionFineTune},
		{0.60, models.ActionIdle},
	}
	for _, c := range cases {
		if got := l.Decide(c.accuracy, 100); got != c.want {
			t.Fatalf("accuracy %.2f: got %s want %s", c.accuracy, got, c.want)
		}
	}
}

func TestDecideFewSamplesIdles(t *testing.T) {
	l := newLearner(&fakeLedger{}, &fakeActuals{}, &fakePerf{})
	if got := l.Decide(0.10, 1); got != models.ActionIdle {
		t.Fatalf("tiny sample must idle, got %s", got)
	}
}

func TestEvaluateComputesAccuracyAndRecords(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pred := func(stock string, p float64) *models.Prediction {
		return &models.Prediction{
			StockID: stock, Region: "KR",
			RecommendationDate: day, TargetDate: day.AddDate(0, 0, 1),
			PredictedReturn: p, ModelVersion: 1,
		}
	}
	ledger := &fakeLedger{matured: []*models.Prediction{
		pred("HIT_UP", 0.02),    // actual +: hit
		pred("HIT_DOWN", -0.01), // actual -: hit
		pred("MISS", 0.03),      // actual -: miss
		pred("FLAT", 0.001),     // both inside flat band: hit
	}}
	actuals := &fakeActuals{returns: map[string]float64{
		"HIT_UP":   0.015,
		"HIT_DOWN": -0.02,
		"MISS":     -0.01,
		"FLAT":     -0.002,
	}}
	perf := &fakePerf{}
	l := newLearner(ledger, actuals, perf)

	rec, err := l.Evaluate(context.Background(), "KR", day.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rec.SampleCount != 4 {
		t.Fatalf("expected 4 scored samples, got %d", rec.SampleCount)
	}
	if math.Abs(rec.Accuracy-0.75) > 1e-9 {
		t.Fatalf("expected accuracy 0.75, got %v", rec.Accuracy)
	}
	if len(perf.records) != 1 {
		t.Fatalf("expected one performance record, got %d", len(perf.records))
	}
	if len(ledger.outcomes) != 4 {
		t.Fatalf("expected 4 outcomes recorded, got %d", len(ledger.outcomes))
	}
}

func TestEvaluateSkipsWhenTooFewSamples(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{matured: []*models.Prediction{{
		StockID: "ONLY", Region: "KR",
		RecommendationDate: day, TargetDate: day.AddDate(0, 0, 1),
		PredictedReturn: 0.01,
	}}}
	actuals := &fakeActuals{returns: map[string]float64{"ONLY": 0.01}}
	l := newLearner(ledger, actuals, &fakePerf{})

	_, err := l.Evaluate(context.Background(), "KR", day.AddDate(0, 0, 2))
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
}

func TestEvaluateSkipsUnavailableActuals(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(s string) *models.Prediction {
		return &models.Prediction{StockID: s, Region: "KR",
			RecommendationDate: day, TargetDate: day.AddDate(0, 0, 1),
			PredictedReturn: 0.01}
	}
	ledger := &fakeLedger{matured: []*models.Prediction{mk("A"), mk("B"), mk("GONE")}}
	actuals := &fakeActuals{returns: map[string]float64{"A": 0.02, "B": 0.01}}
	l := newLearner(ledger, actuals, &fakePerf{})

	rec, err := l.Evaluate(context.Background(), "KR", day.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rec.SampleCount != 2 {
		t.Fatalf("unavailable actual must be skipped, scored %d", rec.SampleCount)
	}
}
