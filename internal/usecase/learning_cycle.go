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
	"StockCast/pkg/queue"
)

// LearningSummary reports the outcome of one learning cycle.
type LearningSummary struct {
	Region  string                    `json:"region"`
	Skipped bool                      `json:"skipped"`
	Record  *models.PerformanceRecord `json:"record,omitempty"`
}

// LearningCycle is the daily feedback pass: evaluate matured predictions
// and, when accuracy degrades, enqueue a retrain. Training runs on the
// queue worker so this never blocks prediction serving.
type LearningCycle struct {
	cfg      *config.Config
	learner  dservice.AdaptiveLearner
	notifier drepo.Notifier
	jobs     queue.QueueService
	metrics  drepo.Metrics
	logger   *applogger.Logger
}

func NewLearningCycle(
	cfg *config.Config,
	learner dservice.AdaptiveLearner,
	notifier drepo.Notifier,
	jobs queue.QueueService,
	metrics drepo.Metrics,
	lgr *applogger.Logger,
) *LearningCycle {
	return &LearningCycle{
		cfg:      cfg,
		learner:  learner,
		notifier: notifier,
		jobs:     jobs,
		metrics:  metrics,
		logger:   lgr,
	}
}

// Run evaluates one (region, date). Too few matured predictions skips the
// cycle without failing it.
func (c *LearningCycle) Run(ctx context.Context, region string, evaluationDate time.Time) (*LearningSummary, error) {
	start := time.Now()

	rec, err := c.learner.Evaluate(ctx, region, evaluationDate)
	if err != nil {
		if errors.Is(err, models.ErrDataInsufficient) {
			c.logger.Info("learning cycle skipped",
				applogger.String("region", region))
			return &LearningSummary{Region: region, Skipped: true}, nil
		}
		return nil, err
	}

	if err := c.notifier.NotifyPerformance(ctx, rec); err != nil {
		c.metrics.RecordError("notify")
		c.logger.Warn("performance notify failed", applogger.Error(err))
	}

	switch rec.Action {
	case models.ActionRetrain:
		err = c.enqueueTraining(ctx, region, models.ProfileIntensive)
	case models.ActionFineTune:
		err = c.enqueueTraining(ctx, region, models.ProfileFineTune)
	}
	if err != nil {
		c.metrics.RecordError("training_enqueue")
		c.logger.Error("training enqueue failed",
			applogger.String("region", region), applogger.Error(err))
	}

	c.metrics.RecordCycle("learning", region, time.Since(start).Seconds())
	return &LearningSummary{Region: region, Record: rec}, nil
}

func (c *LearningCycle) enqueueTraining(ctx context.Context, region string, profile models.TrainingProfile) error {
	c.logger.Info("training requested",
		applogger.String("region", region),
		applogger.String("profile", string(profile)))
	return c.jobs.PublishMessage(ctx, TrainJobType, &TrainPayload{
		Region:  region,
		Profile: string(profile),
	})
}
