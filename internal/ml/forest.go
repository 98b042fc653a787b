package ml

import (
	"errors"
	"math"
	"math/rand"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees          int     `json:"trees"`
	Depth          int     `json:"depth"`
	SampleFraction float64 `json:"sample_fraction"`
	MinLeaf        int     `json:"min_leaf"`
	Seed           int64   `json:"seed"`
}

func (c ForestConfig) validate() error {
	if c.Trees <= 0 {
		return errors.New("forest: trees must be positive")
	}
	if c.Depth <= 0 {
		return errors.New("forest: depth must be positive")
	}
	if c.SampleFraction <= 0 || c.SampleFraction > 1 {
		return errors.New("forest: sample fraction must be in (0, 1]")
	}
	return nil
}

// Forest is a bagged ensemble of regression trees with per-split feature
// subsampling. Deterministic for a fixed seed.
type Forest struct {
	Config ForestConfig `json:"config"`
	Trees  []*Tree      `json:"trees"`

	gains []float64
}

// NewForest validates the configuration and returns an unfit model.
func NewForest(cfg ForestConfig) (*Forest, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MinLeaf < 1 {
		cfg.MinLeaf = 2
	}
	return &Forest{Config: cfg}, nil
}

// Fit trains on rows X with targets y and per-row weights w.
func (f *Forest) Fit(X [][]float64, y, w []float64) error {
	if len(X) == 0 {
		return errors.New("forest: empty training set")
	}
	rng := rand.New(rand.NewSource(f.Config.Seed))
	f.gains = make([]float64, len(X[0]))

	sampleN := int(math.Ceil(f.Config.SampleFraction * float64(len(X))))
	if sampleN < 1 {
		sampleN = 1
	}
	featFrac := math.Sqrt(float64(len(X[0]))) / float64(len(X[0]))

	f.Trees = make([]*Tree, 0, f.Config.Trees)
	for t := 0; t < f.Config.Trees; t++ {
		idx := make([]int, sampleN)
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		tree := fitTree(X, y, w, idx, treeFitOpts{
			maxDepth:    f.Config.Depth,
			minLeaf:     f.Config.MinLeaf,
			featureFrac: featFrac,
			rng:         rng,
			gains:       f.gains,
		})
		f.Trees = append(f.Trees, tree)
	}
	return nil
}

// Predict scores one row as the mean of all trees.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Gains returns accumulated split gain per feature from the last fit.
func (f *Forest) Gains() []float64 { return f.gains }
