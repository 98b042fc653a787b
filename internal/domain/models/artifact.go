package models

import (
	"encoding/json"
	"time"
)

// ComponentModel is one serialized base learner inside an artifact.
type ComponentModel struct {
	Name   string          `json:"name"`
	Weight float64         `json:"weight"`
	Params json.RawMessage `json:"params"`
}

// ModelArtifact is an immutable, versioned snapshot of a trained ensemble
// for one market region. Retraining produces a new version, never an
// in-place mutation, so every prediction stays attributable to the exact
// model that produced it.
type ModelArtifact struct {
	Region        string             `json:"region"`
	Version       int64              `json:"version"`
	Components    []ComponentModel   `json:"components"`
	FeatureSchema []string           `json:"feature_schema"`
	TrainedAt     time.Time          `json:"trained_at"`
	SampleCount   int                `json:"sample_count"`
	Profile       string             `json:"profile"` // standard | fine_tune | intensive
	Importance    map[string]float64 `json:"importance,omitempty"`
}

// TrainingProfile selects the hyperparameter set used for a train call.
type TrainingProfile string

const (
	ProfileStandard  TrainingProfile = "standard"
	ProfileFineTune  TrainingProfile = "fine_tune"
	ProfileIntensive TrainingProfile = "intensive"
)
