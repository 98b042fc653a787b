package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/config"
)

// memLedger is an append-only in-memory ledger with first-write-wins
// semantics on (stock, recommendation date).
type memLedger struct {
	rows map[string]*models.Prediction
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]*models.Prediction)}
}

func ledgerKey(stockID string, date time.Time) string {
	return stockID + "|" + date.Format("2006-01-02")
}

func (l *memLedger) Record(ctx context.Context, p *models.Prediction) error {
	key := ledgerKey(p.StockID, p.RecommendationDate)
	if _, exists := l.rows[key]; exists {
		return models.ErrDuplicatePrediction
	}
	cp := *p
	l.rows[key] = &cp
	return nil
}

func (l *memLedger) RecordOutcome(ctx context.Context, o *models.Outcome) error { return nil }

func (l *memLedger) Matured(ctx context.Context, region string, asOf time.Time) ([]*models.Prediction, error) {
	return nil, nil
}

func (l *memLedger) TopForDate(ctx context.Context, region string, date time.Time, n int) ([]*models.Prediction, error) {
	return nil, nil
}

// stubHistory serves canned histories and fails the stocks listed in bad.
type stubHistory struct {
	points map[string][]*models.PricePoint
	bad    map[string]bool
}

func (s *stubHistory) History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, bool, error) {
	if s.bad[stockID] {
		return nil, false, fmt.Errorf("provider unavailable for %s", stockID)
	}
	return s.points[stockID], false, nil
}

// lastCloseBuilder emits a single-feature vector from the final close.
type lastCloseBuilder struct{}

func (lastCloseBuilder) Build(points []*models.PricePoint, regime models.Regime) (*models.FeatureVector, error) {
	if len(points) == 0 {
		return nil, models.ErrDataInsufficient
	}
	last := points[len(points)-1]
	return &models.FeatureVector{
		StockID:  last.StockID,
		AsOfDate: last.TradeDate,
		Names:    []string{"close"},
		Values:   []float64{last.Close},
	}, nil
}

func (b lastCloseBuilder) BuildSeries(points []*models.PricePoint, regime models.Regime) ([]*models.FeatureVector, error) {
	v, err := b.Build(points, regime)
	if err != nil {
		return nil, err
	}
	return []*models.FeatureVector{v}, nil
}

func (lastCloseBuilder) Schema() []string { return []string{"close"} }
func (lastCloseBuilder) MinHistory() int  { return 1 }

// scoreBank scores each vector from its close feature plus a controllable
// bump, so separate runs can be told apart.
type scoreBank struct {
	bump float64
}

func (b *scoreBank) Predict(ctx context.Context, region string, batch []*models.FeatureVector) ([]*models.Prediction, error) {
	out := make([]*models.Prediction, 0, len(batch))
	for _, v := range batch {
		out = append(out, &models.Prediction{
			StockID:            v.StockID,
			Region:             region,
			ModelVersion:       1,
			RecommendationDate: v.AsOfDate,
			TargetDate:         v.AsOfDate.AddDate(0, 0, 1),
			PredictedReturn:    v.Values[0]/1000 + b.bump,
			Confidence:         0.5,
			Risk:               0.01,
		})
	}
	return out, nil
}

func (b *scoreBank) Train(ctx context.Context, region string, data []*models.LabeledVector, profile models.TrainingProfile) (*models.ModelArtifact, error) {
	return nil, models.ErrDataInsufficient
}

func (b *scoreBank) TopN(preds []*models.Prediction, n int) []*models.Prediction {
	if n > len(preds) {
		n = len(preds)
	}
	return preds[:n]
}

func (b *scoreBank) Current(region string) (*models.ModelArtifact, error) {
	return nil, models.ErrModelUnavailable
}

func (b *scoreBank) Restore(ctx context.Context, region string) error { return nil }

func cycleFixture(t *testing.T, ledger *memLedger, bank *scoreBank) (*PredictionCycle, time.Time) {
	t.Helper()
	asOf := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	points := func(stockID string, close float64) []*models.PricePoint {
		var out []*models.PricePoint
		for i := 0; i < 3; i++ {
			out = append(out, &models.PricePoint{
				StockID:   stockID,
				Region:    "US",
				TradeDate: asOf.AddDate(0, 0, i-2),
				Close:     close,
				Volume:    100,
			})
		}
		return out
	}
	history := &stubHistory{
		points: map[string][]*models.PricePoint{
			"GOOD1": points("GOOD1", 100),
			"GOOD2": points("GOOD2", 50),
		},
		bad: map[string]bool{"BAD": true},
	}

	cfg := &config.Config{}
	cfg.MarketData.Symbols = []string{"GOOD1", "GOOD2", "BAD"}
	cfg.Models.TopN = 10
	cfg.Regime.Window = 20

	cycle := NewPredictionCycle(cfg, history, &capturePriceStore{}, lastCloseBuilder{},
		fakeDetector{}, bank, ledger, &fakeNotifier{}, noopMetrics{}, testLogger(t))
	return cycle, asOf
}

func TestPredictionCycleOmitsFailedStocks(t *testing.T) {
	ledger := newMemLedger()
	cycle, asOf := cycleFixture(t, ledger, &scoreBank{})

	sum, err := cycle.Run(context.Background(), "US", asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Predicted != 2 {
		t.Fatalf("expected 2 predictions, got %d", sum.Predicted)
	}
	if len(sum.Omitted) != 1 || sum.Omitted[0] != "BAD" {
		t.Fatalf("expected BAD omitted, got %v", sum.Omitted)
	}
	if len(ledger.rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(ledger.rows))
	}
}

func TestPredictionCycleDuplicateWritesAreNoOps(t *testing.T) {
	ledger := newMemLedger()
	bank := &scoreBank{}
	cycle, asOf := cycleFixture(t, ledger, bank)

	if _, err := cycle.Run(context.Background(), "US", asOf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := make(map[string]float64, len(ledger.rows))
	for k, p := range ledger.rows {
		first[k] = p.PredictedReturn
	}

	// Different model output on the rerun must not leak into the ledger.
	bank.bump = 1.0
	sum, err := cycle.Run(context.Background(), "US", asOf)
	if err != nil {
		t.Fatalf("rerun must treat duplicates as no-ops: %v", err)
	}
	if sum.Predicted != 2 {
		t.Fatalf("rerun still predicts, got %d", sum.Predicted)
	}
	if len(ledger.rows) != len(first) {
		t.Fatalf("rerun grew the ledger: %d -> %d", len(first), len(ledger.rows))
	}
	for k, want := range first {
		if got := ledger.rows[k].PredictedReturn; got != want {
			t.Fatalf("row %s changed on rerun: %v -> %v", k, want, got)
		}
	}
}

func TestLedgerRejectsDuplicateKey(t *testing.T) {
	ledger := newMemLedger()
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	p1 := &models.Prediction{StockID: "AAPL", RecommendationDate: date, PredictedReturn: 0.01}
	if err := ledger.Record(context.Background(), p1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	p2 := &models.Prediction{StockID: "AAPL", RecommendationDate: date, PredictedReturn: -0.05}
	if err := ledger.Record(context.Background(), p2); !errors.Is(err, models.ErrDuplicatePrediction) {
		t.Fatalf("expected ErrDuplicatePrediction, got %v", err)
	}
	got := ledger.rows[ledgerKey("AAPL", date)]
	if got.PredictedReturn != 0.01 {
		t.Fatalf("duplicate overwrote stored row: %v", got.PredictedReturn)
	}
	// A different date is a new row, not a duplicate.
	p3 := &models.Prediction{StockID: "AAPL", RecommendationDate: date.AddDate(0, 0, 1)}
	if err := ledger.Record(context.Background(), p3); err != nil {
		t.Fatalf("next-day write: %v", err)
	}
}
