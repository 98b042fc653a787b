package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	cycleSeconds *prometheus.HistogramVec
	accuracy     *prometheus.GaugeVec
	modelVersion *prometheus.GaugeVec
	lastPrice    *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_predictions_total",
				Help: "Total number of predictions emitted",
			},
			[]string{"region"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cycleSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_cycle_duration_seconds",
				Help:    "Duration of prediction and learning cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "region"},
		),
		accuracy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_directional_accuracy",
				Help: "Latest evaluated directional accuracy per region",
			},
			[]string{"region"},
		),
		modelVersion: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_model_version",
				Help: "Currently served model version per region",
			},
			[]string{"region"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordPrediction records emitted predictions for a region.
func (r *Recorder) RecordPrediction(region string, count int) {
	r.predictions.WithLabelValues(region).Add(float64(count))
}

// RecordCycle records a cycle duration in seconds.
func (r *Recorder) RecordCycle(kind, region string, seconds float64) {
	r.cycleSeconds.WithLabelValues(kind, region).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAccuracy records the latest evaluated accuracy for a region.
func (r *Recorder) RecordAccuracy(region string, accuracy float64) {
	r.accuracy.WithLabelValues(region).Set(accuracy)
}

// RecordModelVersion records the promoted model version for a region.
func (r *Recorder) RecordModelVersion(region string, version int64) {
	r.modelVersion.WithLabelValues(region).Set(float64(version))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
