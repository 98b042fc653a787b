package usecase

import (
	"context"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	mid "StockCast/internal/middleware"
)

// QuoteCollector consumes the live market stream and keeps the last-price
// gauge current. Intraday ticks never mutate the daily history; that comes
// from the bar topic.
type QuoteCollector struct {
	stream  drepo.MarketStream
	metrics drepo.Metrics
	pipe    *mid.QuotePipeline
}

func NewQuoteCollector(stream drepo.MarketStream, metrics drepo.Metrics, pipe *mid.QuotePipeline) *QuoteCollector {
	return &QuoteCollector{stream: stream, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	trCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, trCh, errCh)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t := <-trCh:
			if t == nil {
				continue
			}
			if c.pipe != nil {
				if !c.pipe.Accept(t) {
					continue
				}
			}
			c.metrics.RecordLastPrice(t.Symbol, t.Price)
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *QuoteCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
