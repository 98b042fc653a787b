package models

import "time"

// Prediction is one scored stock for one recommendation date. Written once
// to the ledger; only an Outcome is attached later, the prediction row
// itself is never mutated.
type Prediction struct {
	StockID            string
	Region             string
	ModelVersion       int64
	RecommendationDate time.Time
	TargetDate         time.Time
	PredictedReturn    float64
	Confidence         float64
	Risk               float64 // dispersion among base learners
}

// Outcome annotates a matured prediction with its realized return.
type Outcome struct {
	StockID            string
	RecommendationDate time.Time
	TargetDate         time.Time
	ActualReturn       float64
	ScoredAt           time.Time
}
