package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// PriceStore persists and serves daily OHLCV history. Missing trading days
// are simply absent, never interpolated.
type PriceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, points []*models.PricePoint) error
	History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, error)
	RegionStocks(ctx context.Context, region string) ([]string, error)
	IndexReturns(ctx context.Context, region string, n int) ([]float64, error)
	Health(ctx context.Context) error
	Close() error
}

// LedgerStore is the append-only prediction ledger. Record is idempotent on
// (stock, recommendation date): duplicates return models.ErrDuplicatePrediction
// and never overwrite the stored row.
type LedgerStore interface {
	Record(ctx context.Context, p *models.Prediction) error
	RecordOutcome(ctx context.Context, o *models.Outcome) error
	Matured(ctx context.Context, region string, asOf time.Time) ([]*models.Prediction, error)
	TopForDate(ctx context.Context, region string, date time.Time, n int) ([]*models.Prediction, error)
}

// ArtifactStore persists versioned model artifacts per region.
type ArtifactStore interface {
	Save(ctx context.Context, a *models.ModelArtifact) error
	Load(ctx context.Context, region string, version int64) (*models.ModelArtifact, error)
	Latest(ctx context.Context, region string) (*models.ModelArtifact, error)
	Versions(ctx context.Context, region string) ([]int64, error)
}

// PerformanceStore appends and reads learner evaluation records.
type PerformanceStore interface {
	Append(ctx context.Context, rec *models.PerformanceRecord) error
	Recent(ctx context.Context, region string, n int) ([]*models.PerformanceRecord, error)
}

// HistorySource serves daily price history for one stock. The degraded
// flag reports that a cached snapshot was returned instead of fresh data.
type HistorySource interface {
	History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, bool, error)
}

// ActualsSource provides realized returns for outcome scoring.
type ActualsSource interface {
	RealizedReturn(ctx context.Context, stockID string, from, to time.Time) (float64, bool, error)
}

// Notifier emits structured summaries to an external dispatcher. The core
// has no knowledge of delivery channel formatting.
type Notifier interface {
	NotifyTopPredictions(ctx context.Context, region string, date time.Time, preds []*models.Prediction) error
	NotifyPerformance(ctx context.Context, rec *models.PerformanceRecord) error
	Close() error
}

// MarketStream is a live quote feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotCache holds the last successfully fetched price history per stock
// for degraded-mode operation.
type SnapshotCache interface {
	PutHistory(ctx context.Context, stockID string, points []*models.PricePoint) error
	GetHistory(ctx context.Context, stockID string) ([]*models.PricePoint, bool, error)
}

// Metrics records operational metrics.
type Metrics interface {
	RecordPrediction(region string, count int)
	RecordCycle(kind, region string, seconds float64)
	RecordError(kind string)
	RecordAccuracy(region string, accuracy float64)
	RecordModelVersion(region string, version int64)
	RecordLastPrice(symbol string, price float64)
}
