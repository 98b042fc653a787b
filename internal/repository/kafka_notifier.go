package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
	pkgkafka "StockCast/pkg/kafka"
)

// KafkaNotifier publishes structured summaries to the notification topics.
// Channel formatting is the dispatcher's business, not ours.
type KafkaNotifier struct {
	producer         *pkgkafka.Producer
	recommendTopic   string
	performanceTopic string
}

func NewKafkaNotifier(producer *pkgkafka.Producer, recommendTopic, performanceTopic string) *KafkaNotifier {
	return &KafkaNotifier{
		producer:         producer,
		recommendTopic:   recommendTopic,
		performanceTopic: performanceTopic,
	}
}

func (n *KafkaNotifier) NotifyTopPredictions(ctx context.Context, region string, date time.Time, preds []*models.Prediction) error {
	rows := make([]map[string]interface{}, 0, len(preds))
	for _, p := range preds {
		rows = append(rows, map[string]interface{}{
			"stock_id":         p.StockID,
			"predicted_return": p.PredictedReturn,
			"confidence":       p.Confidence,
			"risk":             p.Risk,
			"model_version":    p.ModelVersion,
			"target_date":      p.TargetDate.Format("2006-01-02"),
		})
	}
	return n.producer.Publish(ctx, n.recommendTopic, []byte(region), map[string]interface{}{
		"region":              region,
		"recommendation_date": date.Format("2006-01-02"),
		"top":                 rows,
	})
}

func (n *KafkaNotifier) NotifyPerformance(ctx context.Context, rec *models.PerformanceRecord) error {
	return n.producer.Publish(ctx, n.performanceTopic, []byte(rec.Region), map[string]interface{}{
		"region":          rec.Region,
		"evaluation_date": rec.EvaluationDate.Format("2006-01-02"),
		"sample_count":    rec.SampleCount,
		"accuracy":        rec.Accuracy,
		"mae":             rec.MeanAbsoluteError,
		"regime":          string(rec.Regime),
		"action":          string(rec.Action),
		"note":            rec.Note,
	})
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}
