package ml

import (
	"math"
	"math/rand"
	"sort"
)

// node is one split or leaf of a regression tree. Exported fields keep the
// tree JSON-serializable for artifact persistence.
type node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      *node   `json:"l,omitempty"`
	Right     *node   `json:"r,omitempty"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf,omitempty"`
}

// Tree is a CART-style regression tree fit by variance reduction.
type Tree struct {
	Root     *node `json:"root"`
	MaxDepth int   `json:"max_depth"`
	MinLeaf  int   `json:"min_leaf"`
}

// treeFitOpts controls the fit. When featureFrac < 1 a random subset of
// features is considered at every split (used by the forest).
type treeFitOpts struct {
	maxDepth    int
	minLeaf     int
	featureFrac float64
	rng         *rand.Rand
	gains       []float64 // accumulated split gain per feature, optional
}

const maxSplitCandidates = 32

// fitTree builds a regression tree on rows X with targets y and per-row
// weights w. Deterministic for a fixed rng state.
func fitTree(X [][]float64, y, w []float64, idx []int, opts treeFitOpts) *Tree {
	if opts.minLeaf < 1 {
		opts.minLeaf = 1
	}
	t := &Tree{MaxDepth: opts.maxDepth, MinLeaf: opts.minLeaf}
	t.Root = buildNode(X, y, w, idx, 0, opts)
	return t
}

func buildNode(X [][]float64, y, w []float64, idx []int, depth int, opts treeFitOpts) *node {
	mean := weightedMean(y, w, idx)
	if depth >= opts.maxDepth || len(idx) < 2*opts.minLeaf {
		return &node{Value: mean, Leaf: true}
	}

	feat, thr, gain := bestSplit(X, y, w, idx, opts)
	if feat < 0 || gain <= 1e-12 {
		return &node{Value: mean, Leaf: true}
	}
	if opts.gains != nil {
		opts.gains[feat] += gain
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < opts.minLeaf || len(right) < opts.minLeaf {
		return &node{Value: mean, Leaf: true}
	}

	return &node{
		Feature:   feat,
		Threshold: thr,
		Value:     mean,
		Left:      buildNode(X, y, w, left, depth+1, opts),
		Right:     buildNode(X, y, w, right, depth+1, opts),
	}
}

// bestSplit scans candidate thresholds per feature and returns the split
// with the largest weighted SSE reduction.
func bestSplit(X [][]float64, y, w []float64, idx []int, opts treeFitOpts) (int, float64, float64) {
	nFeat := len(X[idx[0]])
	feats := make([]int, 0, nFeat)
	if opts.featureFrac > 0 && opts.featureFrac < 1 && opts.rng != nil {
		k := int(math.Ceil(opts.featureFrac * float64(nFeat)))
		if k < 1 {
			k = 1
		}
		perm := opts.rng.Perm(nFeat)[:k]
		sort.Ints(perm)
		feats = append(feats, perm...)
	} else {
		for f := 0; f < nFeat; f++ {
			feats = append(feats, f)
		}
	}

	base := weightedSSE(y, w, idx)
	bestFeat, bestThr, bestGain := -1, 0.0, 0.0

	vals := make([]float64, 0, len(idx))
	for _, f := range feats {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, X[i][f])
		}
		sort.Float64s(vals)

		step := 1
		if len(vals) > maxSplitCandidates {
			step = len(vals) / maxSplitCandidates
		}
		prev := math.Inf(-1)
		for c := step - 1; c < len(vals)-1; c += step {
			thr := vals[c]
			if thr == prev {
				continue
			}
			prev = thr

			var lSum, lW, rSum, rW float64
			for _, i := range idx {
				if X[i][f] <= thr {
					lSum += w[i] * y[i]
					lW += w[i]
				} else {
					rSum += w[i] * y[i]
					rW += w[i]
				}
			}
			if lW <= 0 || rW <= 0 {
				continue
			}
			lMean := lSum / lW
			rMean := rSum / rW
			var sse float64
			for _, i := range idx {
				d := y[i]
				if X[i][f] <= thr {
					d -= lMean
				} else {
					d -= rMean
				}
				sse += w[i] * d * d
			}
			if g := base - sse; g > bestGain {
				bestFeat, bestThr, bestGain = f, thr, g
			}
		}
	}
	return bestFeat, bestThr, bestGain
}

// Predict returns the tree's output for one row.
func (t *Tree) Predict(x []float64) float64 {
	n := t.Root
	for n != nil && !n.Leaf && n.Left != nil && n.Right != nil {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	if n == nil {
		return 0
	}
	return n.Value
}

func weightedMean(y, w []float64, idx []int) float64 {
	var sum, tw float64
	for _, i := range idx {
		sum += w[i] * y[i]
		tw += w[i]
	}
	if tw <= 0 {
		return 0
	}
	return sum / tw
}

func weightedSSE(y, w []float64, idx []int) float64 {
	m := weightedMean(y, w, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - m
		sse += w[i] * d * d
	}
	return sse
}
