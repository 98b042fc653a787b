package learner

import (
	"context"
	"math"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	dservice "StockCast/internal/domain/service"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

// Learner scores matured predictions against realized returns and decides
// whether the region's model needs retraining. It runs once per market
// close per region and never touches the serving path.
type Learner struct {
	cfg     *config.Config
	ledger  drepo.LedgerStore
	actuals drepo.ActualsSource
	perf    drepo.PerformanceStore
	prices  drepo.PriceStore
	regimes dservice.RegimeDetector
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func New(
	cfg *config.Config,
	ledger drepo.LedgerStore,
	actuals drepo.ActualsSource,
	perf drepo.PerformanceStore,
	prices drepo.PriceStore,
	regimes dservice.RegimeDetector,
	metrics drepo.Metrics,
	lgr *applogger.Logger,
) *Learner {
	return &Learner{
		cfg:     cfg,
		ledger:  ledger,
		actuals: actuals,
		perf:    perf,
		prices:  prices,
		regimes: regimes,
		metrics: metrics,
		logger:  lgr,
	}
}

// Evaluate joins matured ledger entries with realized returns, appends a
// PerformanceRecord, and returns it with the decision attached. Too few
// scorable samples is models.ErrDataInsufficient: the cycle is skipped,
// not failed.
func (l *Learner) Evaluate(ctx context.Context, region string, evaluationDate time.Time) (*models.PerformanceRecord, error) {
	matured, err := l.ledger.Matured(ctx, region, evaluationDate)
	if err != nil {
		return nil, err
	}

	var hits, n int
	var absErrSum float64
	for _, p := range matured {
		actual, ok, err := l.actuals.RealizedReturn(ctx, p.StockID, p.RecommendationDate, p.TargetDate)
		if err != nil {
			l.metrics.RecordError("actuals_fetch")
			l.logger.Warn("actual return unavailable",
				applogger.String("stock", p.StockID),
				applogger.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := l.ledger.RecordOutcome(ctx, &models.Outcome{
			StockID:            p.StockID,
			RecommendationDate: p.RecommendationDate,
			TargetDate:         p.TargetDate,
			ActualReturn:       actual,
			ScoredAt:           time.Now().UTC(),
		}); err != nil {
			l.logger.Warn("outcome record failed",
				applogger.String("stock", p.StockID),
				applogger.Error(err))
		}
		if directionalHit(p.PredictedReturn, actual, l.cfg.Learner.FlatBand) {
			hits++
		}
		absErrSum += math.Abs(p.PredictedReturn - actual)
		n++
	}

	if n < l.cfg.Learner.MinSamples {
		l.logger.Info("too few matured predictions to evaluate",
			applogger.String("region", region),
			applogger.Int("scored", n))
		return nil, models.ErrDataInsufficient
	}

	accuracy := float64(hits) / float64(n)
	mae := absErrSum / float64(n)

	regime := models.RegimeSideways
	if idxReturns, err := l.prices.IndexReturns(ctx, region, l.cfg.Regime.Window*2); err == nil {
		regime = l.regimes.Detect(idxReturns)
	}

	rec := &models.PerformanceRecord{
		Region:            region,
		EvaluationDate:    evaluationDate,
		SampleCount:       n,
		Accuracy:          accuracy,
		MeanAbsoluteError: mae,
		Regime:            regime,
		Action:            l.Decide(accuracy, n),
	}
	if err := l.perf.Append(ctx, rec); err != nil {
		return nil, err
	}
	l.metrics.RecordAccuracy(region, accuracy)
	l.logger.Info("evaluation complete",
		applogger.String("region", region),
		applogger.Int("samples", n),
		applogger.Any("accuracy", accuracy),
		applogger.Any("mae", mae),
		applogger.String("action", string(rec.Action)))
	return rec, nil
}

// Decide maps accuracy to a learner action using the configured thresholds.
func (l *Learner) Decide(accuracy float64, samples int) models.LearnerAction {
	if samples < l.cfg.Learner.MinSamples {
		return models.ActionIdle
	}
	switch {
	case accuracy < l.cfg.Learner.RetrainBelow:
		return models.ActionRetrain
	case accuracy < l.cfg.Learner.FineTuneBelow:
		return models.ActionFineTune
	default:
		return models.ActionIdle
	}
}

// directionalHit counts a prediction as correct when the signs agree, or
// when both predicted and realized moves are inside the flat band (a flat
// call on a flat day is a hit). flatBand is in percent.
func directionalHit(predicted, actual, flatBand float64) bool {
	if predicted > 0 && actual > 0 {
		return true
	}
	if predicted < 0 && actual < 0 {
		return true
	}
	return math.Abs(predicted)*100 < flatBand && math.Abs(actual)*100 < flatBand
}
