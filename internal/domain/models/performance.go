package models

import "time"

// LearnerAction is the decision the adaptive learner takes after evaluating
// one (region, date) cycle.
type LearnerAction string

const (
	ActionIdle     LearnerAction = "IDLE"
	ActionFineTune LearnerAction = "FINE_TUNE"
	ActionRetrain  LearnerAction = "RETRAIN"
)

// PerformanceRecord is one append-only evaluation result for a region.
// It is the basis for retraining decisions and external reporting.
type PerformanceRecord struct {
	Region            string
	EvaluationDate    time.Time
	SampleCount       int
	Accuracy          float64
	MeanAbsoluteError float64
	Regime            Regime
	Action            LearnerAction
	Note              string // e.g. "training_failed: <reason>"
}
