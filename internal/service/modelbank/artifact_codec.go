package modelbank

import (
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/ml"
)

// EncodeArtifact serializes a fit ensemble into an immutable artifact.
func EncodeArtifact(region string, version int64, ens *ml.Ensemble, schema []string, samples int, profile models.TrainingProfile) (*models.ModelArtifact, error) {
	comps := ens.Components()
	encoded := make([]models.ComponentModel, 0, len(comps))
	for _, c := range comps {
		raw, err := ml.MarshalLearner(c.Model)
		if err != nil {
			return nil, fmt.Errorf("encode component %s: %w", c.Name, err)
		}
		encoded = append(encoded, models.ComponentModel{
			Name:   c.Name,
			Weight: c.Weight,
			Params: raw,
		})
	}
	return &models.ModelArtifact{
		Region:        region,
		Version:       version,
		Components:    encoded,
		FeatureSchema: append([]string(nil), schema...),
		TrainedAt:     time.Now().UTC(),
		SampleCount:   samples,
		Profile:       string(profile),
	}, nil
}

// DecodeEnsemble restores the weighted ensemble from a persisted artifact.
// A reloaded ensemble reproduces identical predictions on the same input.
func DecodeEnsemble(a *models.ModelArtifact) (*ml.Ensemble, error) {
	comps := make([]ml.Component, 0, len(a.Components))
	for _, c := range a.Components {
		m, err := ml.UnmarshalLearner(c.Name, c.Params)
		if err != nil {
			return nil, fmt.Errorf("decode component %s: %w", c.Name, err)
		}
		comps = append(comps, ml.Component{Name: c.Name, Weight: c.Weight, Model: m})
	}
	return ml.NewEnsemble(comps)
}
