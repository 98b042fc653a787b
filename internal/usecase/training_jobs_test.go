package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/config"
)

type fakeBuilder struct{}

func (fakeBuilder) Build(points []*models.PricePoint, regime models.Regime) (*models.FeatureVector, error) {
	return nil, models.ErrDataInsufficient
}

func (fakeBuilder) BuildSeries(points []*models.PricePoint, regime models.Regime) ([]*models.FeatureVector, error) {
	return nil, models.ErrDataInsufficient
}

func (fakeBuilder) Schema() []string { return nil }
func (fakeBuilder) MinHistory() int  { return 60 }

type fakeDetector struct{}

func (fakeDetector) Detect(returns []float64) models.Regime { return models.RegimeSideways }

type fakeBank struct {
	trained int
}

func (b *fakeBank) Train(ctx context.Context, region string, data []*models.LabeledVector, profile models.TrainingProfile) (*models.ModelArtifact, error) {
	b.trained++
	return &models.ModelArtifact{Region: region, Version: 1}, nil
}

func (b *fakeBank) Predict(ctx context.Context, region string, batch []*models.FeatureVector) ([]*models.Prediction, error) {
	return nil, models.ErrModelUnavailable
}

func (b *fakeBank) TopN(preds []*models.Prediction, n int) []*models.Prediction { return nil }

func (b *fakeBank) Current(region string) (*models.ModelArtifact, error) {
	return nil, models.ErrModelUnavailable
}

func (b *fakeBank) Restore(ctx context.Context, region string) error { return nil }

type capturePerf struct {
	appended []*models.PerformanceRecord
}

func (p *capturePerf) Append(ctx context.Context, rec *models.PerformanceRecord) error {
	p.appended = append(p.appended, rec)
	return nil
}

func (p *capturePerf) Recent(ctx context.Context, region string, n int) ([]*models.PerformanceRecord, error) {
	return nil, nil
}

func trainTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Learner.TrainTimeout = 5 * time.Second
	cfg.Models.LabelHorizon = 1
	return cfg
}

func TestTrainJobFailureKeepsServingAndAppendsNote(t *testing.T) {
	prices := &capturePriceStore{} // RegionStocks returns nothing
	bank := &fakeBank{}
	perf := &capturePerf{}
	job := NewTrainJob(trainTestConfig(), prices, fakeBuilder{}, fakeDetector{}, bank, perf, testLogger(t))

	err := job.Handle(context.Background(), &TrainPayload{Region: "US", Profile: string(models.ProfileIntensive)})
	if err == nil {
		t.Fatalf("expected training failure with no stocks")
	}
	if bank.trained != 0 {
		t.Fatalf("bank must not be trained on empty dataset")
	}
	if len(perf.appended) != 1 {
		t.Fatalf("expected one failure note, got %d", len(perf.appended))
	}
	if !strings.HasPrefix(perf.appended[0].Note, "training_failed") {
		t.Fatalf("unexpected note %q", perf.appended[0].Note)
	}
}

func TestTrainJobDefaultsProfile(t *testing.T) {
	job := NewTrainJob(trainTestConfig(), &capturePriceStore{}, fakeBuilder{}, fakeDetector{}, &fakeBank{}, &capturePerf{}, testLogger(t))

	// Unknown payload types are rejected before any training work.
	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatalf("expected payload parse error")
	}
	if job.Type() != TrainJobType || job.Name() == "" {
		t.Fatalf("job identity wrong: type=%q name=%q", job.Type(), job.Name())
	}
}
