package marketdata

import (
	"context"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
)

// HistoryClient fetches daily price history from the external market data
// API with bounded retries. On exhaustion it degrades to the last
// successfully fetched snapshot instead of hanging the pipeline.
type HistoryClient struct {
	baseURL  string
	apiKey   string
	client   *xhttp.Client
	retryMax int
	backoff  time.Duration
	snapshot drepo.SnapshotCache
	logger   *applogger.Logger
	metrics  drepo.Metrics
}

func NewHistoryClient(cfg *config.Config, snapshot drepo.SnapshotCache, lgr *applogger.Logger, metrics drepo.Metrics) *HistoryClient {
	return &HistoryClient{
		baseURL:  cfg.MarketData.HistoryURL,
		apiKey:   cfg.MarketData.APIKey,
		client:   xhttp.NewClient(xhttp.WithTimeout(cfg.MarketData.Timeout)),
		retryMax: cfg.MarketData.RetryMax,
		backoff:  cfg.MarketData.RetryBackoff,
		snapshot: snapshot,
		logger:   lgr,
		metrics:  metrics,
	}
}

// historyRow accepts the provider's row under either close or close_price
// naming; the normalization happens once here, before any feature work.
type historyRow struct {
	Date       string  `json:"date"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	ClosePrice float64 `json:"close_price"`
	Volume     float64 `json:"volume"`
}

func (r historyRow) close() float64 {
	if r.Close != 0 {
		return r.Close
	}
	return r.ClosePrice
}

type historyResponse struct {
	StockID string       `json:"stock_id"`
	Region  string       `json:"region"`
	Rows    []historyRow `json:"rows"`
}

// History fetches the ordered series for one stock. Missing trading days
// stay absent; nothing is interpolated. Returns degraded=true when the
// snapshot was served instead of fresh data.
func (c *HistoryClient) History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		points, err := c.fetch(ctx, stockID, from, to)
		if err == nil {
			if serr := c.snapshot.PutHistory(ctx, stockID, points); serr != nil {
				c.logger.Warn("snapshot refresh failed",
					applogger.String("stock", stockID),
					applogger.Error(serr))
			}
			return points, false, nil
		}
		lastErr = err
		c.metrics.RecordError("history_fetch")
		select {
		case <-time.After(time.Duration(attempt) * c.backoff):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	if cached, ok, err := c.snapshot.GetHistory(ctx, stockID); err == nil && ok {
		c.logger.Warn("serving last known good history",
			applogger.String("stock", stockID),
			applogger.Error(lastErr))
		return cached, true, nil
	}
	return nil, false, &models.ExternalFetchError{
		Source:   "price_history",
		Attempts: c.retryMax,
		Err:      lastErr,
	}
}

func (c *HistoryClient) fetch(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, error) {
	var resp historyResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/history/%s", c.baseURL, stockID),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
		},
		QueryParams: map[string][]string{
			"from": {from.Format("2006-01-02")},
			"to":   {to.Format("2006-01-02")},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	points := make([]*models.PricePoint, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", r.Date, err)
		}
		points = append(points, &models.PricePoint{
			StockID:   stockID,
			Region:    resp.Region,
			TradeDate: d,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.close(),
			Volume:    r.Volume,
		})
	}
	return points, nil
}
