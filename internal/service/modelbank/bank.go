package modelbank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	"StockCast/internal/ml"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

const eps = 1e-8

// regionState holds the served model for one region. The pointer swap is
// the promotion: readers always see either the old fully trained artifact
// or the new one, never a partial state.
type regionState struct {
	current atomic.Pointer[servedModel]
}

type servedModel struct {
	artifact *models.ModelArtifact
	ensemble *ml.Ensemble
}

// Bank owns one artifact lineage per market region. Training runs to
// completion off the serving path; prediction always uses the last
// promoted artifact.
type Bank struct {
	cfg     *config.Config
	store   drepo.ArtifactStore
	logger  *applogger.Logger
	metrics drepo.Metrics

	mu      sync.Mutex // guards region map creation and version allocation
	regions map[string]*regionState
}

func New(cfg *config.Config, store drepo.ArtifactStore, lgr *applogger.Logger, metrics drepo.Metrics) *Bank {
	return &Bank{
		cfg:     cfg,
		store:   store,
		logger:  lgr,
		metrics: metrics,
		regions: make(map[string]*regionState),
	}
}

func (b *Bank) region(region string) *regionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs, ok := b.regions[region]
	if !ok {
		rs = &regionState{}
		b.regions[region] = rs
	}
	return rs
}

// Current returns the served artifact for a region.
func (b *Bank) Current(region string) (*models.ModelArtifact, error) {
	sm := b.region(region).current.Load()
	if sm == nil {
		return nil, models.ErrModelUnavailable
	}
	return sm.artifact, nil
}

// Restore loads the latest persisted artifact into memory, typically at
// startup.
func (b *Bank) Restore(ctx context.Context, region string) error {
	a, err := b.store.Latest(ctx, region)
	if err != nil {
		return err
	}
	ens, err := DecodeEnsemble(a)
	if err != nil {
		return fmt.Errorf("restore region %s: %w", region, err)
	}
	b.region(region).current.Store(&servedModel{artifact: a, ensemble: ens})
	b.metrics.RecordModelVersion(region, a.Version)
	b.logger.Info("model restored",
		applogger.String("region", region),
		applogger.Int64("version", a.Version))
	return nil
}

// Train fits a fresh ensemble on the labeled dataset and promotes it only
// after the fit and holdout validation succeed. A failure leaves the
// previous artifact current and never advances the version.
func (b *Bank) Train(ctx context.Context, region string, data []*models.LabeledVector, profile models.TrainingProfile) (*models.ModelArtifact, error) {
	start := time.Now()
	if len(data) == 0 {
		return nil, &models.TrainingError{Region: region, Err: models.ErrDataInsufficient}
	}
	schema := data[0].Names
	for _, d := range data {
		if !d.SchemaEqual(schema) {
			return nil, &models.TrainingError{Region: region, Err: &models.SchemaMismatchError{
				StockID: d.StockID, Want: len(schema), Got: len(d.Names),
			}}
		}
	}

	var pos, neg int
	for _, d := range data {
		if d.Label > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, &models.TrainingError{Region: region,
			Err: fmt.Errorf("need two label classes, got %d up / %d down: %w", pos, neg, models.ErrDataInsufficient)}
	}

	trainIdx, testIdx := splitIndices(data, pos, neg, b.cfg.Models.TestFraction)

	X := make([][]float64, len(data))
	y := make([]float64, len(data))
	w := make([]float64, len(data))
	// Balanced class weights: each direction contributes equally to the fit.
	wPos := float64(len(data)) / (2 * float64(pos))
	wNeg := float64(len(data)) / (2 * float64(neg))
	for i, d := range data {
		X[i] = d.Values
		y[i] = d.Label
		if d.Label > 0 {
			w[i] = wPos
		} else {
			w[i] = wNeg
		}
	}

	ens, err := b.fitEnsemble(ctx, subset(X, trainIdx), pick(y, trainIdx), pick(w, trainIdx), profile)
	if err != nil {
		b.metrics.RecordError("training")
		return nil, &models.TrainingError{Region: region, Err: err}
	}

	if err := validateHoldout(ens, subset(X, testIdx), pick(y, testIdx)); err != nil {
		b.metrics.RecordError("training_validation")
		return nil, &models.TrainingError{Region: region, Err: err}
	}

	version, err := b.nextVersion(ctx, region)
	if err != nil {
		return nil, &models.TrainingError{Region: region, Err: err}
	}

	artifact, err := EncodeArtifact(region, version, ens, schema, len(data), profile)
	if err != nil {
		return nil, &models.TrainingError{Region: region, Err: err}
	}
	// Importance only once the combined ensemble is fully assembled.
	artifact.Importance = ens.Importance(schema)

	if err := b.store.Save(ctx, artifact); err != nil {
		return nil, &models.TrainingError{Region: region, Err: fmt.Errorf("persist artifact: %w", err)}
	}

	b.region(region).current.Store(&servedModel{artifact: artifact, ensemble: ens})
	b.metrics.RecordModelVersion(region, version)
	b.logger.Info("model trained",
		applogger.String("region", region),
		applogger.Int64("version", version),
		applogger.String("profile", string(profile)),
		applogger.Int("samples", len(data)),
		applogger.Duration("took", time.Since(start)))
	return artifact, nil
}

func (b *Bank) fitEnsemble(ctx context.Context, X [][]float64, y, w []float64, profile models.TrainingProfile) (*ml.Ensemble, error) {
	m := b.cfg.Models

	gbtTrees, gbtDepth := m.GradientBoost.Trees, m.GradientBoost.Depth
	if profile == models.ProfileIntensive {
		gbtTrees, gbtDepth = m.Intensive.Trees, m.Intensive.Depth
	}

	g1, err := ml.NewGBT(ml.GBTConfig{
		Trees: gbtTrees, Depth: gbtDepth,
		LearningRate: m.GradientBoost.LearningRate, Seed: 42,
	})
	if err != nil {
		return nil, err
	}
	g2, err := ml.NewGBT(ml.GBTConfig{
		Trees: m.GradientBoostAlt.Trees, Depth: m.GradientBoostAlt.Depth,
		LearningRate: m.GradientBoostAlt.LearningRate, Seed: 1337,
	})
	if err != nil {
		return nil, err
	}
	rf, err := ml.NewForest(ml.ForestConfig{
		Trees: m.Forest.Trees, Depth: m.Forest.Depth,
		SampleFraction: m.Forest.SampleFrc, Seed: 2024,
	})
	if err != nil {
		return nil, err
	}

	type fitter interface {
		Fit(X [][]float64, y, w []float64) error
	}
	for _, f := range []fitter{g1, g2, rf} {
		if err := ctx.Err(); err != nil {
			return nil, err // abandoned retrain, partial fit discarded
		}
		if err := f.Fit(X, y, w); err != nil {
			return nil, err
		}
	}

	return ml.NewEnsemble([]ml.Component{
		{Name: "gbt", Weight: m.GradientBoost.Weight, Model: g1},
		{Name: "gbt_alt", Weight: m.GradientBoostAlt.Weight, Model: g2},
		{Name: "forest", Weight: m.Forest.Weight, Model: rf},
	})
}

// validateHoldout sanity-checks the candidate before promotion: every
// holdout score must be finite.
func validateHoldout(ens *ml.Ensemble, X [][]float64, y []float64) error {
	for i := range X {
		score, _ := ens.Predict(X[i])
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return fmt.Errorf("holdout row %d produced non-finite score", i)
		}
	}
	_ = y
	return nil
}

func (b *Bank) nextVersion(ctx context.Context, region string) (int64, error) {
	var latest int64
	if sm := b.region(region).current.Load(); sm != nil {
		latest = sm.artifact.Version
	}
	versions, err := b.store.Versions(ctx, region)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}
	for _, v := range versions {
		if v > latest {
			latest = v
		}
	}
	return latest + 1, nil
}

// Predict scores a batch against the current artifact. An empty batch is an
// empty result, not an error. A schema mismatch aborts the call.
func (b *Bank) Predict(ctx context.Context, region string, batch []*models.FeatureVector) ([]*models.Prediction, error) {
	if len(batch) == 0 {
		return []*models.Prediction{}, nil
	}
	sm := b.region(region).current.Load()
	if sm == nil {
		return nil, models.ErrModelUnavailable
	}

	horizon := b.cfg.Models.LabelHorizon
	out := make([]*models.Prediction, 0, len(batch))
	for _, v := range batch {
		if !v.SchemaEqual(sm.artifact.FeatureSchema) {
			return nil, &models.SchemaMismatchError{
				StockID: v.StockID,
				Want:    len(sm.artifact.FeatureSchema),
				Got:     len(v.Names),
			}
		}
		score, disp := sm.ensemble.Predict(v.Values)
		out = append(out, &models.Prediction{
			StockID:            v.StockID,
			Region:             region,
			ModelVersion:       sm.artifact.Version,
			RecommendationDate: v.AsOfDate,
			TargetDate:         v.AsOfDate.AddDate(0, 0, horizon),
			PredictedReturn:    score,
			Confidence:         confidence(score, disp),
			Risk:               disp,
		})
	}
	b.metrics.RecordPrediction(region, len(out))
	return out, nil
}

// confidence blends learner agreement with signal strength, clamped to
// [0.1, 0.95] so no prediction is ever reported as certain.
func confidence(score, dispersion float64) float64 {
	agreement := 1 - dispersion/(math.Abs(score)+dispersion+eps)
	strength := math.Abs(score) / 0.02
	if strength > 1 {
		strength = 1
	}
	c := 0.6*agreement + 0.4*strength
	if c < 0.1 {
		c = 0.1
	}
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// TopN returns the n highest-scoring predictions. Ties break to the lower
// risk first, then lexicographic stock id, so the result is deterministic.
func (b *Bank) TopN(preds []*models.Prediction, n int) []*models.Prediction {
	sorted := make([]*models.Prediction, len(preds))
	copy(sorted, preds)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PredictedReturn != sorted[j].PredictedReturn {
			return sorted[i].PredictedReturn > sorted[j].PredictedReturn
		}
		if sorted[i].Risk != sorted[j].Risk {
			return sorted[i].Risk < sorted[j].Risk
		}
		return sorted[i].StockID < sorted[j].StockID
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// splitIndices carves a holdout. A stratified split is used when both
// classes have at least 2 members and the fraction is valid; otherwise it
// falls back to a plain tail split rather than failing.
func splitIndices(data []*models.LabeledVector, pos, neg int, testFraction float64) (train, test []int) {
	n := len(data)
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = 0.2
	}
	stratify := pos >= 2 && neg >= 2

	if !stratify {
		cut := n - int(math.Ceil(testFraction*float64(n)))
		if cut < 1 {
			cut = 1
		}
		for i := 0; i < n; i++ {
			if i < cut {
				train = append(train, i)
			} else {
				test = append(test, i)
			}
		}
		return train, test
	}

	// Stratified: take the trailing fraction of each class, preserving the
	// chronological order inside each class.
	var posIdx, negIdx []int
	for i, d := range data {
		if d.Label > 0 {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}
	for _, cls := range [][]int{posIdx, negIdx} {
		k := int(math.Ceil(testFraction * float64(len(cls))))
		if k < 1 {
			k = 1
		}
		if k >= len(cls) {
			k = len(cls) - 1
		}
		cut := len(cls) - k
		train = append(train, cls[:cut]...)
		test = append(test, cls[cut:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func subset(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func pick(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}
