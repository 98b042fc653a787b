package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"
	"StockCast/pkg/util"
)

// BarIngestor consumes daily OHLCV bar messages and appends them to the
// price store.
type BarIngestor struct {
	topic   string
	prices  drepo.PriceStore
	metrics drepo.Metrics
}

func NewBarIngestor(topic string, prices drepo.PriceStore, metrics drepo.Metrics) *BarIngestor {
	return &BarIngestor{topic: topic, prices: prices, metrics: metrics}
}

func (h *BarIngestor) Topic() string { return h.topic }

func (h *BarIngestor) Handle(ctx context.Context, b []byte) error {
	var m models.Bar
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("bar_unmarshal")
		return err
	}
	if m.StockID == "" || m.Date == "" {
		h.metrics.RecordError("bar_invalid")
		return fmt.Errorf("bar missing stock_id or date")
	}
	day, err := util.ParseDate(m.Date)
	if err != nil {
		h.metrics.RecordError("bar_invalid")
		return fmt.Errorf("bar date %q: %w", m.Date, err)
	}
	closePrice := m.ClosingPrice()
	if closePrice <= 0 {
		h.metrics.RecordError("bar_invalid")
		return fmt.Errorf("bar %s %s has no close", m.StockID, m.Date)
	}

	err = h.prices.StoreBatch(ctx, []*models.PricePoint{{
		StockID:   m.StockID,
		Region:    m.Region,
		TradeDate: day,
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     closePrice,
		Volume:    m.Volume,
	}})
	if err != nil {
		h.metrics.RecordError("bar_store")
		return err
	}
	h.metrics.RecordLastPrice(m.StockID, closePrice)
	return nil
}

var _ pkgkafka.MessageHandler = (*BarIngestor)(nil)
