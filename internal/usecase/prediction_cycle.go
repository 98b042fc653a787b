package usecase

import (
	"context"
	"errors"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	dservice "StockCast/internal/domain/service"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
)

// historyLookbackDays covers the longest rolling window with margin.
const historyLookbackDays = 400

// CycleSummary reports what a prediction cycle produced. Stocks that could
// not be scored are listed, never silently given default scores.
type CycleSummary struct {
	Region    string        `json:"region"`
	AsOf      time.Time     `json:"as_of"`
	Regime    models.Regime `json:"regime"`
	Predicted int           `json:"predicted"`
	Omitted   []string      `json:"omitted,omitempty"`
	Degraded  bool          `json:"degraded,omitempty"`
}

// PredictionCycle runs the daily scoring pass for one region: fetch
// history, detect the regime, build features, score, persist to the
// ledger, and notify the top picks.
type PredictionCycle struct {
	cfg      *config.Config
	history  drepo.HistorySource
	prices   drepo.PriceStore
	builder  dservice.FeatureBuilder
	regimes  dservice.RegimeDetector
	bank     dservice.ModelBank
	ledger   drepo.LedgerStore
	notifier drepo.Notifier
	metrics  drepo.Metrics
	logger   *applogger.Logger
}

func NewPredictionCycle(
	cfg *config.Config,
	history drepo.HistorySource,
	prices drepo.PriceStore,
	builder dservice.FeatureBuilder,
	regimes dservice.RegimeDetector,
	bank dservice.ModelBank,
	ledger drepo.LedgerStore,
	notifier drepo.Notifier,
	metrics drepo.Metrics,
	lgr *applogger.Logger,
) *PredictionCycle {
	return &PredictionCycle{
		cfg:      cfg,
		history:  history,
		prices:   prices,
		builder:  builder,
		regimes:  regimes,
		bank:     bank,
		ledger:   ledger,
		notifier: notifier,
		metrics:  metrics,
		logger:   lgr,
	}
}

// Run executes one cycle. Per-stock data problems skip the stock and are
// reported in the summary; a missing model for the region fails the cycle.
func (c *PredictionCycle) Run(ctx context.Context, region string, asOf time.Time) (*CycleSummary, error) {
	start := time.Now()
	summary := &CycleSummary{Region: region, AsOf: asOf}

	stocks, err := c.prices.RegionStocks(ctx, region)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		stocks = c.cfg.MarketData.Symbols
	}

	summary.Regime = models.RegimeSideways
	if idxReturns, err := c.prices.IndexReturns(ctx, region, c.cfg.Regime.Window*2); err == nil {
		summary.Regime = c.regimes.Detect(idxReturns)
	} else {
		c.logger.Warn("index returns unavailable, assuming sideways",
			applogger.String("region", region), applogger.Error(err))
	}

	from := asOf.AddDate(0, 0, -historyLookbackDays)
	batch := make([]*models.FeatureVector, 0, len(stocks))
	for _, stock := range stocks {
		points, degraded, err := c.history.History(ctx, stock, from, asOf)
		if err != nil {
			c.metrics.RecordError("cycle_history")
			c.logger.Warn("history unavailable, stock omitted",
				applogger.String("stock", stock), applogger.Error(err))
			summary.Omitted = append(summary.Omitted, stock)
			continue
		}
		if degraded {
			summary.Degraded = true
		} else if err := c.prices.StoreBatch(ctx, points); err != nil {
			c.logger.Warn("price store refresh failed",
				applogger.String("stock", stock), applogger.Error(err))
		}

		vec, err := c.builder.Build(points, summary.Regime)
		if err != nil {
			if errors.Is(err, models.ErrDataInsufficient) {
				c.logger.Info("insufficient history, stock omitted",
					applogger.String("stock", stock),
					applogger.Int("points", len(points)))
				summary.Omitted = append(summary.Omitted, stock)
				continue
			}
			return nil, err
		}
		batch = append(batch, vec)
	}

	preds, err := c.bank.Predict(ctx, region, batch)
	if err != nil {
		return nil, err
	}
	summary.Predicted = len(preds)
	c.metrics.RecordPrediction(region, len(preds))

	for _, p := range preds {
		if err := c.ledger.Record(ctx, p); err != nil {
			if errors.Is(err, models.ErrDuplicatePrediction) {
				c.logger.Debug("prediction already recorded",
					applogger.String("stock", p.StockID))
				continue
			}
			return nil, err
		}
	}

	top := c.bank.TopN(preds, c.cfg.Models.TopN)
	if len(top) > 0 {
		if err := c.notifier.NotifyTopPredictions(ctx, region, asOf, top); err != nil {
			c.metrics.RecordError("notify")
			c.logger.Warn("top predictions notify failed", applogger.Error(err))
		}
	}

	c.metrics.RecordCycle("prediction", region, time.Since(start).Seconds())
	c.logger.Info("prediction cycle complete",
		applogger.String("region", region),
		applogger.String("regime", string(summary.Regime)),
		applogger.Int("predicted", summary.Predicted),
		applogger.Int("omitted", len(summary.Omitted)),
		applogger.Duration("took", time.Since(start)))
	return summary, nil
}
