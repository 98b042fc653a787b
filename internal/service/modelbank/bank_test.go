package modelbank

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/service/features"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

type memArtifactStore struct {
	mu   sync.Mutex
	byRV map[string]map[int64]*models.ModelArtifact
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{byRV: make(map[string]map[int64]*models.ModelArtifact)}
}

func (s *memArtifactStore) Save(_ context.Context, a *models.ModelArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byRV[a.Region] == nil {
		s.byRV[a.Region] = make(map[int64]*models.ModelArtifact)
	}
	s.byRV[a.Region][a.Version] = a
	return nil
}

func (s *memArtifactStore) Load(_ context.Context, region string, version int64) (*models.ModelArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byRV[region][version]
	if !ok {
		return nil, models.ErrModelUnavailable
	}
	return a, nil
}

func (s *memArtifactStore) Latest(ctx context.Context, region string) (*models.ModelArtifact, error) {
	vs, err := s.Versions(ctx, region)
	if err != nil || len(vs) == 0 {
		return nil, models.ErrModelUnavailable
	}
	return s.Load(ctx, region, vs[len(vs)-1])
}

func (s *memArtifactStore) Versions(_ context.Context, region string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vs []int64
	for v := range s.byRV[region] {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordPrediction(string, int)        {}
func (noopMetrics) RecordCycle(string, string, float64) {}
func (noopMetrics) RecordError(string)                  {}
func (noopMetrics) RecordAccuracy(string, float64)      {}
func (noopMetrics) RecordModelVersion(string, int64)    {}
func (noopMetrics) RecordLastPrice(string, float64)     {}

func testConfig() *config.Config {
	cfg := &config.Config{}
	m := &cfg.Models
	m.MinHistory = 60
	m.LabelHorizon = 1
	m.TestFraction = 0.2
	m.TopN = 10
	m.GradientBoost.Trees = 40
	m.GradientBoost.Depth = 3
	m.GradientBoost.LearningRate = 0.1
	m.GradientBoost.Weight = 0.5
	m.GradientBoostAlt.Trees = 25
	m.GradientBoostAlt.Depth = 4
	m.GradientBoostAlt.LearningRate = 0.05
	m.GradientBoostAlt.Weight = 0.3
	m.Forest.Trees = 20
	m.Forest.Depth = 5
	m.Forest.SampleFrc = 0.8
	m.Forest.Weight = 0.2
	m.Intensive.Trees = 80
	m.Intensive.Depth = 6
	return cfg
}

func testBank(t *testing.T) (*Bank, *memArtifactStore) {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := newMemArtifactStore()
	return New(testConfig(), store, lgr, noopMetrics{}), store
}

func labeledFixture(n int, seed int64) []*models.LabeledVector {
	rng := rand.New(rand.NewSource(seed))
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	schema := []string{"a", "b", "c"}
	out := make([]*models.LabeledVector, n)
	for i := 0; i < n; i++ {
		a := rng.Float64() - 0.5
		v := &models.LabeledVector{}
		v.StockID = "S1"
		v.AsOfDate = day
		v.Names = schema
		v.Values = []float64{a, rng.Float64(), rng.Float64()}
		v.Label = a * 0.02 // label follows feature "a"
		out[i] = v
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func TestPredictEmptyBatch(t *testing.T) {
	b, _ := testBank(t)
	out, err := b.Predict(context.Background(), "KR", []*models.FeatureVector{})
	if err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestPredictNoModel(t *testing.T) {
	b, _ := testBank(t)
	v := &models.FeatureVector{StockID: "S1", Names: []string{"a"}, Values: []float64{1}}
	_, err := b.Predict(context.Background(), "KR", []*models.FeatureVector{v})
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestTrainPredictAndSchemaCheck(t *testing.T) {
	b, _ := testBank(t)
	ctx := context.Background()
	data := labeledFixture(200, 1)

	a, err := b.Train(ctx, "KR", data, models.ProfileStandard)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("first version must be 1, got %d", a.Version)
	}

	batch := []*models.FeatureVector{{
		StockID: "S1", AsOfDate: time.Now(),
		Names: []string{"a", "b", "c"}, Values: []float64{0.4, 0.5, 0.5},
	}}
	preds, err := b.Predict(ctx, "KR", batch)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(preds) != 1 || preds[0].ModelVersion != 1 {
		t.Fatalf("unexpected predictions: %+v", preds)
	}

	bad := []*models.FeatureVector{{
		StockID: "S1", Names: []string{"a", "b"}, Values: []float64{0.4, 0.5},
	}}
	var sm *models.SchemaMismatchError
	if _, err := b.Predict(ctx, "KR", bad); !errors.As(err, &sm) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestVersionsMonotonicAndFailedTrainKeepsCurrent(t *testing.T) {
	b, _ := testBank(t)
	ctx := context.Background()

	if _, err := b.Train(ctx, "KR", labeledFixture(200, 1), models.ProfileStandard); err != nil {
		t.Fatalf("train 1: %v", err)
	}
	if _, err := b.Train(ctx, "KR", labeledFixture(200, 2), models.ProfileFineTune); err != nil {
		t.Fatalf("train 2: %v", err)
	}
	cur, err := b.Current("KR")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.Version != 2 {
		t.Fatalf("expected version 2, got %d", cur.Version)
	}

	// Single-class dataset must fail and must not advance the version.
	oneClass := labeledFixture(100, 3)
	for _, d := range oneClass {
		d.Label = 0.01
	}
	var te *models.TrainingError
	if _, err := b.Train(ctx, "KR", oneClass, models.ProfileStandard); !errors.As(err, &te) {
		t.Fatalf("expected TrainingError, got %v", err)
	}
	cur, _ = b.Current("KR")
	if cur.Version != 2 {
		t.Fatalf("failed train advanced version to %d", cur.Version)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	b, store := testBank(t)
	ctx := context.Background()
	if _, err := b.Train(ctx, "KR", labeledFixture(200, 7), models.ProfileStandard); err != nil {
		t.Fatalf("train: %v", err)
	}

	batch := []*models.FeatureVector{{
		StockID: "S1", AsOfDate: time.Now(),
		Names: []string{"a", "b", "c"}, Values: []float64{-0.3, 0.2, 0.8},
	}}
	want, err := b.Predict(ctx, "KR", batch)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// Fresh bank restored purely from the persisted artifact.
	lgr, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	b2 := New(testConfig(), store, lgr, noopMetrics{})
	if err := b2.Restore(ctx, "KR"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := b2.Predict(ctx, "KR", batch)
	if err != nil {
		t.Fatalf("predict restored: %v", err)
	}
	if got[0].PredictedReturn != want[0].PredictedReturn {
		t.Fatalf("round trip changed prediction: %v vs %v",
			got[0].PredictedReturn, want[0].PredictedReturn)
	}
}

func TestTopNDeterministicTieBreak(t *testing.T) {
	b, _ := testBank(t)
	preds := []*models.Prediction{
		{StockID: "B", PredictedReturn: 0.02, Risk: 0.5},
		{StockID: "A", PredictedReturn: 0.02, Risk: 0.5},
		{StockID: "C", PredictedReturn: 0.02, Risk: 0.1},
		{StockID: "D", PredictedReturn: 0.05, Risk: 0.9},
	}
	top := b.TopN(preds, 3)
	if top[0].StockID != "D" || top[1].StockID != "C" || top[2].StockID != "A" {
		t.Fatalf("unexpected order: %s %s %s", top[0].StockID, top[1].StockID, top[2].StockID)
	}
}

// Directional sanity: a momentum series with a known upward trend injected
// for the final 20 days should score positive on day 101 after training on
// the first 100 days.
func TestEndToEndUpwardTrend(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const days = 120
	returns := make([]float64, days)
	for i := 1; i < 100; i++ {
		// AR(1) momentum the trees can learn from return features
		returns[i] = 0.9*returns[i-1] + 0.02*(rng.Float64()-0.5)
	}
	for i := 100; i < days; i++ {
		returns[i] = 0.02 // injected upward trend
	}

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	points := make([]*models.PricePoint, days)
	for i := 0; i < days; i++ {
		price *= 1 + returns[i]
		points[i] = &models.PricePoint{
			StockID: "TREND", Region: "KR", TradeDate: day,
			Open: price, High: price, Low: price, Close: price,
			Volume: 1e6,
		}
		day = day.AddDate(0, 0, 1)
	}

	fb := features.New(60)
	trainVecs, err := fb.BuildSeries(points[:100], models.RegimeSideways)
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	// Label each vector with the realized next-day return.
	var labeled []*models.LabeledVector
	for _, v := range trainVecs {
		var next float64
		found := false
		for i, p := range points {
			if p.TradeDate.Equal(v.AsOfDate) && i+1 < 100 {
				next = returns[i+1]
				found = true
				break
			}
		}
		if !found {
			continue
		}
		labeled = append(labeled, &models.LabeledVector{FeatureVector: *v, Label: next})
	}

	b, _ := testBank(t)
	ctx := context.Background()
	if _, err := b.Train(ctx, "KR", labeled, models.ProfileStandard); err != nil {
		t.Fatalf("train: %v", err)
	}

	// Predict on day 101 with history through day 101.
	vec, err := fb.Build(points[:101], models.RegimeSideways)
	if err != nil {
		t.Fatalf("build day 101: %v", err)
	}
	preds, err := b.Predict(ctx, "KR", []*models.FeatureVector{vec})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if preds[0].PredictedReturn <= 0 {
		t.Fatalf("expected positive predicted return, got %v", preds[0].PredictedReturn)
	}
	if preds[0].Confidence <= 0.5 {
		t.Fatalf("expected confidence above 0.5, got %v", preds[0].Confidence)
	}
}
