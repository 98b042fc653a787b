package service

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// FeatureBuilder turns ordered per-stock price history into a fixed-width
// feature vector for the last date of the series. Deterministic given
// identical input history.
type FeatureBuilder interface {
	Build(points []*models.PricePoint, regime models.Regime) (*models.FeatureVector, error)
	BuildSeries(points []*models.PricePoint, regime models.Regime) ([]*models.FeatureVector, error)
	Schema() []string
	MinHistory() int
}

// ModelBank owns one artifact lineage per market region.
type ModelBank interface {
	Train(ctx context.Context, region string, data []*models.LabeledVector, profile models.TrainingProfile) (*models.ModelArtifact, error)
	Predict(ctx context.Context, region string, batch []*models.FeatureVector) ([]*models.Prediction, error)
	TopN(preds []*models.Prediction, n int) []*models.Prediction
	Current(region string) (*models.ModelArtifact, error)
	Restore(ctx context.Context, region string) error
}

// RegimeDetector classifies current market condition from recent
// index-level returns. Pure function of recent history, no persisted state.
type RegimeDetector interface {
	Detect(returns []float64) models.Regime
}

// AdaptiveLearner is the feedback loop: score matured predictions, append a
// performance record, and decide whether to retrain.
type AdaptiveLearner interface {
	Evaluate(ctx context.Context, region string, evaluationDate time.Time) (*models.PerformanceRecord, error)
	Decide(accuracy float64, samples int) models.LearnerAction
}
