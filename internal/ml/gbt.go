package ml

import (
	"errors"
	"math/rand"
)

// GBTConfig holds gradient-boosted tree hyperparameters. Unknown options
// are rejected at construction, not silently ignored.
type GBTConfig struct {
	Trees        int     `json:"trees"`
	Depth        int     `json:"depth"`
	LearningRate float64 `json:"learning_rate"`
	MinLeaf      int     `json:"min_leaf"`
	Seed         int64   `json:"seed"`
}

func (c GBTConfig) validate() error {
	if c.Trees <= 0 {
		return errors.New("gbt: trees must be positive")
	}
	if c.Depth <= 0 {
		return errors.New("gbt: depth must be positive")
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return errors.New("gbt: learning rate must be in (0, 1]")
	}
	return nil
}

// GBT is a gradient-boosted ensemble of regression trees fit on squared
// error. The fit is deterministic for a fixed seed.
type GBT struct {
	Config GBTConfig `json:"config"`
	Base   float64   `json:"base"`
	Trees  []*Tree   `json:"trees"`

	gains []float64
}

// NewGBT validates the configuration and returns an unfit model.
func NewGBT(cfg GBTConfig) (*GBT, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MinLeaf < 1 {
		cfg.MinLeaf = 2
	}
	return &GBT{Config: cfg}, nil
}

// Fit trains on rows X with targets y and per-row weights w.
func (g *GBT) Fit(X [][]float64, y, w []float64) error {
	if len(X) == 0 {
		return errors.New("gbt: empty training set")
	}
	rng := rand.New(rand.NewSource(g.Config.Seed))
	_ = rng // boosting itself is deterministic; seed reserved for subsampling

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	g.Base = weightedMean(y, w, idx)
	g.gains = make([]float64, len(X[0]))

	pred := make([]float64, len(X))
	for i := range pred {
		pred[i] = g.Base
	}
	resid := make([]float64, len(X))

	g.Trees = make([]*Tree, 0, g.Config.Trees)
	for t := 0; t < g.Config.Trees; t++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tree := fitTree(X, resid, w, idx, treeFitOpts{
			maxDepth: g.Config.Depth,
			minLeaf:  g.Config.MinLeaf,
			gains:    g.gains,
		})
		g.Trees = append(g.Trees, tree)
		for i := range pred {
			pred[i] += g.Config.LearningRate * tree.Predict(X[i])
		}
	}
	return nil
}

// Predict scores one row.
func (g *GBT) Predict(x []float64) float64 {
	out := g.Base
	for _, t := range g.Trees {
		out += g.Config.LearningRate * t.Predict(x)
	}
	return out
}

// Gains returns accumulated split gain per feature from the last fit.
func (g *GBT) Gains() []float64 { return g.gains }
