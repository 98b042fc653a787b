package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StockCast/internal/domain/models"
	pkgch "StockCast/pkg/clickhouse"
)

// CHPerformance implements the append-only performance log on ClickHouse.
type CHPerformance struct {
	db *sql.DB
}

func NewCHPerformance(client *pkgch.Client) *CHPerformance {
	return &CHPerformance{db: client.DB()}
}

func (s *CHPerformance) Append(ctx context.Context, rec *models.PerformanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO performance_records
		(region, evaluation_date, sample_count, accuracy, mae, regime, action, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Region, rec.EvaluationDate, rec.SampleCount, rec.Accuracy,
		rec.MeanAbsoluteError, string(rec.Regime), string(rec.Action), rec.Note)
	if err != nil {
		return fmt.Errorf("performance insert: %w", err)
	}
	return nil
}

func (s *CHPerformance) Recent(ctx context.Context, region string, n int) ([]*models.PerformanceRecord, error) {
	q := `SELECT region, evaluation_date, sample_count, accuracy, mae, regime, action, note
		FROM performance_records
		WHERE region = ?
		ORDER BY evaluation_date DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, region, n)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}
	defer rows.Close()

	var out []*models.PerformanceRecord
	for rows.Next() {
		var r models.PerformanceRecord
		var regime, action string
		if err := rows.Scan(&r.Region, &r.EvaluationDate, &r.SampleCount, &r.Accuracy,
			&r.MeanAbsoluteError, &regime, &action, &r.Note); err != nil {
			return nil, err
		}
		r.Regime = models.Regime(regime)
		r.Action = models.LearnerAction(action)
		out = append(out, &r)
	}
	return out, rows.Err()
}
