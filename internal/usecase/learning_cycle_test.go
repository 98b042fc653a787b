package usecase

import (
	"context"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

type fakeLearner struct {
	rec *models.PerformanceRecord
	err error
}

func (f *fakeLearner) Evaluate(ctx context.Context, region string, evaluationDate time.Time) (*models.PerformanceRecord, error) {
	return f.rec, f.err
}

func (f *fakeLearner) Decide(accuracy float64, samples int) models.LearnerAction {
	return models.ActionIdle
}

type fakeNotifier struct {
	perfCalls int
}

func (f *fakeNotifier) NotifyTopPredictions(ctx context.Context, region string, date time.Time, preds []*models.Prediction) error {
	return nil
}

func (f *fakeNotifier) NotifyPerformance(ctx context.Context, rec *models.PerformanceRecord) error {
	f.perfCalls++
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

type fakeQueue struct {
	msgType  string
	payloads []*TrainPayload
}

func (f *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	f.msgType = msgType
	f.payloads = append(f.payloads, payload.(*TrainPayload))
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordPrediction(string, int)        {}
func (noopMetrics) RecordCycle(string, string, float64) {}
func (noopMetrics) RecordError(string)                  {}
func (noopMetrics) RecordAccuracy(string, float64)      {}
func (noopMetrics) RecordModelVersion(string, int64)    {}
func (noopMetrics) RecordLastPrice(string, float64)     {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestLearningCycleEnqueuesIntensiveRetrain(t *testing.T) {
	rec := &models.PerformanceRecord{
		Region:   "US",
		Accuracy: 0.45,
		Action:   models.ActionRetrain,
	}
	q := &fakeQueue{}
	n := &fakeNotifier{}
	cycle := NewLearningCycle(&config.Config{}, &fakeLearner{rec: rec}, n, q, noopMetrics{}, testLogger(t))

	sum, err := cycle.Run(context.Background(), "US", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Skipped {
		t.Fatalf("expected cycle to run")
	}
	if n.perfCalls != 1 {
		t.Fatalf("expected one performance notification, got %d", n.perfCalls)
	}
	if q.msgType != TrainJobType {
		t.Fatalf("expected message type %q, got %q", TrainJobType, q.msgType)
	}
	if len(q.payloads) != 1 || q.payloads[0].Profile != string(models.ProfileIntensive) {
		t.Fatalf("expected one intensive train payload, got %+v", q.payloads)
	}
}

func TestLearningCycleFineTune(t *testing.T) {
	rec := &models.PerformanceRecord{
		Region:   "US",
		Accuracy: 0.52,
		Action:   models.ActionFineTune,
	}
	q := &fakeQueue{}
	cycle := NewLearningCycle(&config.Config{}, &fakeLearner{rec: rec}, &fakeNotifier{}, q, noopMetrics{}, testLogger(t))

	if _, err := cycle.Run(context.Background(), "US", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.payloads) != 1 || q.payloads[0].Profile != string(models.ProfileFineTune) {
		t.Fatalf("expected fine-tune payload, got %+v", q.payloads)
	}
}

func TestLearningCycleIdleDoesNotEnqueue(t *testing.T) {
	rec := &models.PerformanceRecord{
		Region:   "US",
		Accuracy: 0.60,
		Action:   models.ActionIdle,
	}
	q := &fakeQueue{}
	cycle := NewLearningCycle(&config.Config{}, &fakeLearner{rec: rec}, &fakeNotifier{}, q, noopMetrics{}, testLogger(t))

	if _, err := cycle.Run(context.Background(), "US", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.payloads) != 0 {
		t.Fatalf("idle decision must not enqueue training, got %+v", q.payloads)
	}
}

func TestLearningCycleSkipsOnInsufficientData(t *testing.T) {
	q := &fakeQueue{}
	n := &fakeNotifier{}
	cycle := NewLearningCycle(&config.Config{},
		&fakeLearner{err: models.ErrDataInsufficient}, n, q, noopMetrics{}, testLogger(t))

	sum, err := cycle.Run(context.Background(), "US", time.Now())
	if err != nil {
		t.Fatalf("insufficient data must skip, not fail: %v", err)
	}
	if !sum.Skipped {
		t.Fatalf("expected skipped summary")
	}
	if n.perfCalls != 0 || len(q.payloads) != 0 {
		t.Fatalf("skipped cycle must not notify or enqueue")
	}
}
