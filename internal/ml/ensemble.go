package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Learner is a fit regression model usable as an ensemble component.
type Learner interface {
	Predict(x []float64) float64
	Gains() []float64
}

// Component is one weighted base learner.
type Component struct {
	Name   string
	Weight float64
	Model  Learner
}

// Ensemble combines independently fit base learners with an explicit
// weighted sum, so weights and inputs stay testable in isolation.
type Ensemble struct {
	components []Component
}

// NewEnsemble builds an ensemble from fit components. Weights must be
// positive and sum to 1.
func NewEnsemble(components []Component) (*Ensemble, error) {
	if len(components) == 0 {
		return nil, errors.New("ensemble: no components")
	}
	var sum float64
	for _, c := range components {
		if c.Weight <= 0 {
			return nil, fmt.Errorf("ensemble: component %s has non-positive weight", c.Name)
		}
		if c.Model == nil {
			return nil, fmt.Errorf("ensemble: component %s has no model", c.Name)
		}
		sum += c.Weight
	}
	if sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("ensemble: weights sum to %.3f, want 1.0", sum)
	}
	return &Ensemble{components: components}, nil
}

// Components returns the component list.
func (e *Ensemble) Components() []Component { return e.components }

// Predict returns the weighted score and the dispersion (population
// standard deviation) of the individual component outputs. Dispersion is
// the risk proxy: high disagreement means low confidence.
func (e *Ensemble) Predict(x []float64) (score, dispersion float64) {
	outs := make([]float64, len(e.components))
	for i, c := range e.components {
		outs[i] = c.Model.Predict(x)
		score += c.Weight * outs[i]
	}
	var varSum float64
	for _, o := range outs {
		d := o - score
		varSum += d * d
	}
	dispersion = math.Sqrt(varSum / float64(len(outs)))
	return score, dispersion
}

// Importance aggregates normalized per-feature split gains across all
// components, weighted by component weight. Only callable on a fully
// assembled ensemble.
func (e *Ensemble) Importance(featureNames []string) map[string]float64 {
	agg := make([]float64, len(featureNames))
	for _, c := range e.components {
		gains := c.Model.Gains()
		var total float64
		for _, g := range gains {
			total += g
		}
		if total <= 0 {
			continue
		}
		for i := 0; i < len(agg) && i < len(gains); i++ {
			agg[i] += c.Weight * gains[i] / total
		}
	}
	out := make(map[string]float64, len(featureNames))
	for i, n := range featureNames {
		out[n] = agg[i]
	}
	return out
}

// MarshalLearner serializes a fit learner to JSON params.
func MarshalLearner(l Learner) (json.RawMessage, error) {
	return json.Marshal(l)
}

// UnmarshalLearner restores a learner of the named kind from JSON params.
// Recognized kinds are "gbt", "gbt_alt" and "forest".
func UnmarshalLearner(kind string, params json.RawMessage) (Learner, error) {
	switch kind {
	case "gbt", "gbt_alt":
		var g GBT
		if err := json.Unmarshal(params, &g); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return &g, nil
	case "forest":
		var f Forest
		if err := json.Unmarshal(params, &f); err != nil {
			return nil, fmt.Errorf("decode forest: %w", err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown learner kind %q", kind)
	}
}
