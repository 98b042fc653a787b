package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	pkgch "StockCast/pkg/clickhouse"
)

// Schema statements for all StockCast tables, applied idempotently at
// startup via pkg/clickhouse InitSchema.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS daily_prices (
		stock_id    String,
		region      String,
		trade_date  Date,
		open        Float64,
		high        Float64,
		low         Float64,
		close       Float64,
		volume      Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (stock_id, trade_date)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		stock_id            String,
		region              String,
		model_version       Int64,
		recommendation_date Date,
		target_date         Date,
		predicted_return    Float64,
		confidence          Float64,
		risk                Float64
	) ENGINE = MergeTree
	ORDER BY (stock_id, recommendation_date)`,
	`CREATE TABLE IF NOT EXISTS prediction_outcomes (
		stock_id            String,
		recommendation_date Date,
		target_date         Date,
		actual_return       Float64,
		scored_at           DateTime
	) ENGINE = MergeTree
	ORDER BY (stock_id, recommendation_date)`,
	`CREATE TABLE IF NOT EXISTS performance_records (
		region          String,
		evaluation_date Date,
		sample_count    Int64,
		accuracy        Float64,
		mae             Float64,
		regime          String,
		action          String,
		note            String
	) ENGINE = MergeTree
	ORDER BY (region, evaluation_date)`,
}

// CHPriceStore implements PriceStore on ClickHouse.
type CHPriceStore struct {
	client *pkgch.Client
	db     *sql.DB
}

func NewCHPriceStore(client *pkgch.Client) *CHPriceStore {
	return &CHPriceStore{client: client, db: client.DB()}
}

func (s *CHPriceStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, SchemaStatements)
}

func (s *CHPriceStore) StoreBatch(ctx context.Context, points []*models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, p := range points[start:end] {
			if p == nil || p.StockID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, p.StockID, p.Region, p.TradeDate, p.Open, p.High, p.Low, p.Close, p.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO daily_prices (stock_id, region, trade_date, open, high, low, close, volume) VALUES %s",
			strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert prices: %w", err)
		}
	}
	return nil
}

func (s *CHPriceStore) History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, error) {
	q := `SELECT stock_id, region, trade_date, open, high, low, close, volume
		FROM daily_prices FINAL
		WHERE stock_id = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC`
	rows, err := s.db.QueryContext(ctx, q, stockID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.StockID, &p.Region, &p.TradeDate, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *CHPriceStore) RegionStocks(ctx context.Context, region string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT stock_id FROM daily_prices WHERE region = ? ORDER BY stock_id", region)
	if err != nil {
		return nil, fmt.Errorf("query region stocks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IndexReturns returns the last n equal-weighted daily returns of the
// region, oldest first.
func (s *CHPriceStore) IndexReturns(ctx context.Context, region string, n int) ([]float64, error) {
	q := `SELECT trade_date, avg(close) AS idx
		FROM daily_prices FINAL
		WHERE region = ?
		GROUP BY trade_date
		ORDER BY trade_date DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, region, n+1)
	if err != nil {
		return nil, fmt.Errorf("query index returns: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var d time.Time
		var c float64
		if err := rows.Scan(&d, &c); err != nil {
			return nil, err
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows came newest first; compute returns oldest first.
	returns := make([]float64, 0, len(closes))
	for i := len(closes) - 1; i > 0; i-- {
		prev := closes[i]
		cur := closes[i-1]
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, cur/prev-1)
	}
	return returns, nil
}

func (s *CHPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceStore) Close() error {
	return nil // connection managed by pkg client
}
