package ml

import (
	"math"
	"testing"
)

func trainingData(n int) ([][]float64, []float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i) / float64(n)
		x1 := math.Sin(float64(i))
		X[i] = []float64{x0, x1}
		y[i] = 2*x0 + 0.1*x1
		w[i] = 1
	}
	return X, y, w
}

func TestTreeFitsStepFunction(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}, {12}, {13}}
	y := []float64{0, 0, 0, 0, 5, 5, 5, 5}
	w := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}

	tree := fitTree(X, y, w, idx, treeFitOpts{maxDepth: 2, minLeaf: 1})
	if got := tree.Predict([]float64{1.5}); math.Abs(got) > 1e-9 {
		t.Fatalf("left side: got %v want 0", got)
	}
	if got := tree.Predict([]float64{11.5}); math.Abs(got-5) > 1e-9 {
		t.Fatalf("right side: got %v want 5", got)
	}
}

func TestGBTLearnsTrend(t *testing.T) {
	X, y, w := trainingData(200)
	g, err := NewGBT(GBTConfig{Trees: 50, Depth: 3, LearningRate: 0.1, Seed: 42})
	if err != nil {
		t.Fatalf("new gbt: %v", err)
	}
	if err := g.Fit(X, y, w); err != nil {
		t.Fatalf("fit: %v", err)
	}
	lo := g.Predict([]float64{0.1, 0})
	hi := g.Predict([]float64{0.9, 0})
	if hi <= lo {
		t.Fatalf("expected increasing prediction, got lo=%v hi=%v", lo, hi)
	}
}

func TestForestDeterministicForSeed(t *testing.T) {
	X, y, w := trainingData(100)
	fit := func() *Forest {
		f, err := NewForest(ForestConfig{Trees: 10, Depth: 4, SampleFraction: 0.8, Seed: 7})
		if err != nil {
			t.Fatalf("new forest: %v", err)
		}
		if err := f.Fit(X, y, w); err != nil {
			t.Fatalf("fit: %v", err)
		}
		return f
	}
	a, b := fit(), fit()
	probe := []float64{0.5, 0.3}
	if a.Predict(probe) != b.Predict(probe) {
		t.Fatalf("same seed produced different predictions")
	}
}

func TestEnsembleWeightsValidated(t *testing.T) {
	g, _ := NewGBT(GBTConfig{Trees: 1, Depth: 1, LearningRate: 0.1})
	X, y, w := trainingData(20)
	if err := g.Fit(X, y, w); err != nil {
		t.Fatalf("fit: %v", err)
	}
	_, err := NewEnsemble([]Component{{Name: "gbt", Weight: 0.5, Model: g}})
	if err == nil {
		t.Fatalf("expected weight sum error")
	}
}

func TestEnsembleRoundTrip(t *testing.T) {
	X, y, w := trainingData(150)

	g1, _ := NewGBT(GBTConfig{Trees: 30, Depth: 3, LearningRate: 0.1, Seed: 1})
	g2, _ := NewGBT(GBTConfig{Trees: 20, Depth: 4, LearningRate: 0.05, Seed: 2})
	rf, _ := NewForest(ForestConfig{Trees: 15, Depth: 4, SampleFraction: 0.8, Seed: 3})
	for _, m := range []interface {
		Fit([][]float64, []float64, []float64) error
	}{g1, g2, rf} {
		if err := m.Fit(X, y, w); err != nil {
			t.Fatalf("fit: %v", err)
		}
	}

	e, err := NewEnsemble([]Component{
		{Name: "gbt", Weight: 0.5, Model: g1},
		{Name: "gbt_alt", Weight: 0.3, Model: g2},
		{Name: "forest", Weight: 0.2, Model: rf},
	})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}

	probe := []float64{0.42, -0.2}
	want, _ := e.Predict(probe)

	restored := make([]Component, 0, 3)
	for _, c := range e.Components() {
		raw, err := MarshalLearner(c.Model)
		if err != nil {
			t.Fatalf("marshal %s: %v", c.Name, err)
		}
		m, err := UnmarshalLearner(c.Name, raw)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", c.Name, err)
		}
		restored = append(restored, Component{Name: c.Name, Weight: c.Weight, Model: m})
	}
	e2, err := NewEnsemble(restored)
	if err != nil {
		t.Fatalf("restored ensemble: %v", err)
	}
	got, _ := e2.Predict(probe)
	if got != want {
		t.Fatalf("round trip changed prediction: got %v want %v", got, want)
	}
}

func TestEnsembleDispersion(t *testing.T) {
	X, y, w := trainingData(100)
	g1, _ := NewGBT(GBTConfig{Trees: 10, Depth: 3, LearningRate: 0.1, Seed: 1})
	if err := g1.Fit(X, y, w); err != nil {
		t.Fatalf("fit: %v", err)
	}
	e, err := NewEnsemble([]Component{
		{Name: "a", Weight: 0.5, Model: g1},
		{Name: "b", Weight: 0.5, Model: g1},
	})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	_, disp := e.Predict([]float64{0.5, 0})
	if disp != 0 {
		t.Fatalf("identical components must have zero dispersion, got %v", disp)
	}
}
