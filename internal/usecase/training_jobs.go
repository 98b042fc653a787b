package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	dservice "StockCast/internal/domain/service"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
)

// TrainJobType identifies retrain messages on the training queue.
const TrainJobType = "train_model"

// trainingLookbackDays is roughly two years of daily bars.
const trainingLookbackDays = 730

// TrainPayload asks the worker to retrain one region.
type TrainPayload struct {
	Region  string `json:"region"`
	Profile string `json:"profile"`
}

// TrainJob executes queued retrains. It runs on the queue worker, off the
// serving path; a failure keeps the previous artifact current and appends
// a failure note to the performance log.
type TrainJob struct {
	cfg     *config.Config
	prices  drepo.PriceStore
	builder dservice.FeatureBuilder
	regimes dservice.RegimeDetector
	bank    dservice.ModelBank
	perf    drepo.PerformanceStore
	logger  *applogger.Logger
}

func NewTrainJob(
	cfg *config.Config,
	prices drepo.PriceStore,
	builder dservice.FeatureBuilder,
	regimes dservice.RegimeDetector,
	bank dservice.ModelBank,
	perf drepo.PerformanceStore,
	lgr *applogger.Logger,
) *TrainJob {
	return &TrainJob{
		cfg:     cfg,
		prices:  prices,
		builder: builder,
		regimes: regimes,
		bank:    bank,
		perf:    perf,
		logger:  lgr,
	}
}

func (j *TrainJob) Name() string { return "train_model" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainPayload](payload)
	if err != nil {
		return err
	}
	profile := models.TrainingProfile(p.Profile)
	if profile == "" {
		profile = models.ProfileStandard
	}

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Learner.TrainTimeout)
	defer cancel()

	data, err := j.assembleDataset(ctx, p.Region)
	if err == nil {
		_, err = j.bank.Train(ctx, p.Region, data, profile)
	}
	if err != nil {
		j.logger.Error("training failed, previous model stays current",
			applogger.String("region", p.Region),
			applogger.Error(err))
		note := &models.PerformanceRecord{
			Region:         p.Region,
			EvaluationDate: time.Now().UTC(),
			Regime:         models.RegimeSideways,
			Action:         models.ActionIdle,
			Note:           fmt.Sprintf("training_failed: %v", err),
		}
		if perr := j.perf.Append(ctx, note); perr != nil {
			j.logger.Warn("failure note append failed", applogger.Error(perr))
		}
		return err
	}
	return nil
}

// assembleDataset builds labeled vectors for every region stock with
// enough history. The regime feature is filled per row from the trailing
// index returns available at that row's date.
func (j *TrainJob) assembleDataset(ctx context.Context, region string) ([]*models.LabeledVector, error) {
	stocks, err := j.prices.RegionStocks(ctx, region)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("region %s has no stocks: %w", region, models.ErrDataInsufficient)
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -trainingLookbackDays)
	horizon := j.cfg.Models.LabelHorizon

	histories := make(map[string][]*models.PricePoint, len(stocks))
	for _, stock := range stocks {
		points, err := j.prices.History(ctx, stock, from, to)
		if err != nil {
			return nil, err
		}
		if len(points) < j.builder.MinHistory()+horizon {
			continue
		}
		histories[stock] = points
	}
	if len(histories) == 0 {
		return nil, models.ErrDataInsufficient
	}

	regimeAt := j.regimeByDate(histories)

	var data []*models.LabeledVector
	for _, points := range histories {
		vecs, err := j.builder.BuildSeries(points, models.RegimeSideways)
		if err != nil {
			continue
		}
		closeByDate := make(map[time.Time]int, len(points))
		for i, pt := range points {
			closeByDate[pt.TradeDate] = i
		}
		for _, v := range vecs {
			i, ok := closeByDate[v.AsOfDate]
			if !ok || i+horizon >= len(points) {
				continue
			}
			base := points[i].Close
			if base <= 0 {
				continue
			}
			// The regime slot is the final schema entry; fill it with the
			// regime observable at this row's date.
			v.Values[len(v.Values)-1] = regimeAt(v.AsOfDate).Code()
			data = append(data, &models.LabeledVector{
				FeatureVector: *v,
				Label:         points[i+horizon].Close/base - 1,
			})
		}
	}
	if len(data) == 0 {
		return nil, models.ErrDataInsufficient
	}
	return data, nil
}

// regimeByDate builds a lookup from trade date to the regime implied by
// the equal-weight index of the supplied histories, using only returns up
// to and including that date.
func (j *TrainJob) regimeByDate(histories map[string][]*models.PricePoint) func(time.Time) models.Regime {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, points := range histories {
		for _, p := range points {
			sums[p.TradeDate] += p.Close
			counts[p.TradeDate]++
		}
	}
	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, k int) bool { return dates[i].Before(dates[k]) })

	idx := make([]float64, len(dates))
	for i, d := range dates {
		idx[i] = sums[d] / float64(counts[d])
	}
	returns := make([]float64, len(dates))
	for i := 1; i < len(idx); i++ {
		if idx[i-1] > 0 {
			returns[i] = idx[i]/idx[i-1] - 1
		}
	}
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	return func(d time.Time) models.Regime {
		i, ok := pos[d]
		if !ok {
			return models.RegimeSideways
		}
		return j.regimes.Detect(returns[:i+1])
	}
}

var _ queue.Job = (*TrainJob)(nil)
