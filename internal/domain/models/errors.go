package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataInsufficient means too little history to build features or
	// train. Recovered locally by skipping the affected stock or cycle.
	ErrDataInsufficient = errors.New("insufficient data")

	// ErrModelUnavailable means no trained artifact exists for a region.
	// Callers must surface it; no fallback prediction is fabricated.
	ErrModelUnavailable = errors.New("no model available")

	// ErrDuplicatePrediction means a ledger entry already exists for the
	// (stock, recommendation date) pair. The stored row is left untouched.
	ErrDuplicatePrediction = errors.New("prediction already recorded")
)

// SchemaMismatchError reports a feature vector whose shape does not match
// the artifact expected to score it.
type SchemaMismatchError struct {
	StockID string
	Want    int
	Got     int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch for %s: want %d features, got %d", e.StockID, e.Want, e.Got)
}

// ExternalFetchError wraps a transient failure of an external data source
// after retries were exhausted. Degraded indicates a last-known-good
// snapshot was served instead.
type ExternalFetchError struct {
	Source   string
	Attempts int
	Degraded bool
	Err      error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *ExternalFetchError) Unwrap() error { return e.Err }

// TrainingError reports a failed train call. The previous artifact stays
// current; the failure is recorded, never fatal to serving.
type TrainingError struct {
	Region string
	Err    error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed for region %s: %v", e.Region, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
