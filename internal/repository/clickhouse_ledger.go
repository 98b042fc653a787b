package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	pkgch "StockCast/pkg/clickhouse"
	applogger "StockCast/pkg/logger"
)

// CHLedger implements the append-only prediction ledger on ClickHouse.
type CHLedger struct {
	db     *sql.DB
	logger *applogger.Logger
}

func NewCHLedger(client *pkgch.Client) *CHLedger {
	return &CHLedger{db: client.DB()}
}

// SetLogger attaches an optional logger.
func (l *CHLedger) SetLogger(lgr *applogger.Logger) { l.logger = lgr }

// Record appends one prediction. A row already present for the
// (stock, recommendation date) pair is left untouched and the write is
// reported as models.ErrDuplicatePrediction so callers can treat it as a
// no-op without losing auditability.
func (l *CHLedger) Record(ctx context.Context, p *models.Prediction) error {
	var count uint64
	err := l.db.QueryRowContext(ctx,
		"SELECT count() FROM predictions WHERE stock_id = ? AND recommendation_date = ?",
		p.StockID, p.RecommendationDate).Scan(&count)
	if err != nil {
		return fmt.Errorf("ledger duplicate check: %w", err)
	}
	if count > 0 {
		return models.ErrDuplicatePrediction
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO predictions
		(stock_id, region, model_version, recommendation_date, target_date, predicted_return, confidence, risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StockID, p.Region, p.ModelVersion, p.RecommendationDate, p.TargetDate,
		p.PredictedReturn, p.Confidence, p.Risk)
	if err != nil {
		return fmt.Errorf("ledger insert: %w", err)
	}
	return nil
}

// RecordOutcome appends an outcome row. Outcomes are separate appends, the
// prediction row is never updated.
func (l *CHLedger) RecordOutcome(ctx context.Context, o *models.Outcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO prediction_outcomes
		(stock_id, recommendation_date, target_date, actual_return, scored_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.StockID, o.RecommendationDate, o.TargetDate, o.ActualReturn, o.ScoredAt)
	if err != nil {
		return fmt.Errorf("outcome insert: %w", err)
	}
	return nil
}

// Matured returns region entries whose target date has passed but which
// have no outcome recorded yet.
func (l *CHLedger) Matured(ctx context.Context, region string, asOf time.Time) ([]*models.Prediction, error) {
	q := `SELECT p.stock_id, p.region, p.model_version, p.recommendation_date, p.target_date,
			p.predicted_return, p.confidence, p.risk
		FROM predictions p
		LEFT ANTI JOIN prediction_outcomes o
			ON p.stock_id = o.stock_id AND p.recommendation_date = o.recommendation_date
		WHERE p.region = ? AND p.target_date <= ?
		ORDER BY p.stock_id, p.recommendation_date`
	rows, err := l.db.QueryContext(ctx, q, region, asOf)
	if err != nil {
		return nil, fmt.Errorf("query matured: %w", err)
	}
	defer rows.Close()
	return scanPredictions(rows)
}

// TopForDate returns the n highest-scoring ledger entries for one date.
func (l *CHLedger) TopForDate(ctx context.Context, region string, date time.Time, n int) ([]*models.Prediction, error) {
	q := `SELECT stock_id, region, model_version, recommendation_date, target_date,
			predicted_return, confidence, risk
		FROM predictions
		WHERE region = ? AND recommendation_date = ?
		ORDER BY predicted_return DESC, risk ASC, stock_id ASC
		LIMIT ?`
	rows, err := l.db.QueryContext(ctx, q, region, date, n)
	if err != nil {
		return nil, fmt.Errorf("query top: %w", err)
	}
	defer rows.Close()
	return scanPredictions(rows)
}

func scanPredictions(rows *sql.Rows) ([]*models.Prediction, error) {
	var out []*models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.StockID, &p.Region, &p.ModelVersion, &p.RecommendationDate,
			&p.TargetDate, &p.PredictedReturn, &p.Confidence, &p.Risk); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
