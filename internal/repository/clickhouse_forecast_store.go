package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	pkgch "StockForecaster/pkg/clickhouse"
	applogger "StockForecaster/pkg/logger"
)

// clickhouseSchema keeps the latest version of a run per run_id; re-recorded
// runs are collapsed by ReplacingMergeTree and read back with FINAL.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS forecast_runs (
        run_id String,
        ticker LowCardinality(String),
        column_name LowCardinality(String),
        mode LowCardinality(String),
        spec String,
        p UInt8, d UInt8, q UInt8,
        seasonal_p UInt8, seasonal_d UInt8, seasonal_q UInt8,
        seasonal_period UInt16,
        start_date String,
        end_date String,
        observations UInt32,
        horizon UInt16,
        aic Nullable(Float64),
        stationary Bool,
        p_value Nullable(Float64),
        duration_ms Int64,
        created_at DateTime64(3, 'UTC')
    ) ENGINE = ReplacingMergeTree(created_at)
    ORDER BY (ticker, run_id)`,
	`CREATE TABLE IF NOT EXISTS forecast_points (
        run_id String,
        step UInt16,
        date Date,
        predicted Nullable(Float64),
        lower Nullable(Float64),
        upper Nullable(Float64)
    ) ENGINE = ReplacingMergeTree
    ORDER BY (run_id, step)`,
}

// CHForecastStore implements ForecastStore backed by ClickHouse.
type CHForecastStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHForecastStore(ch *pkgch.Client) *CHForecastStore {
	return &CHForecastStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHForecastStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHForecastStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, clickhouseSchema)
}

// Save inserts the run, then its points as one batch.
func (s *CHForecastStore) Save(ctx context.Context, r *models.ForecastRun) error {
	if err := r.Validate(); err != nil {
		return err
	}
	start := time.Now()

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		runsTable, strings.Join(runColumns, ", "), placeholders(len(runColumns)))
	if _, err := s.db.ExecContext(ctx, q, runArgs(r, r.CreatedAt.UTC())...); err != nil {
		s.logError("insert run", r, err)
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Points) > 0 {
		if err := s.insertPoints(ctx, r); err != nil {
			s.logError("insert points", r, err)
			return fmt.Errorf("insert points: %w", err)
		}
	}

	if s.l != nil {
		s.l.Debug("clickhouse save_run ok",
			applogger.String("run_id", r.RunID),
			applogger.String("ticker", r.Ticker),
			applogger.Int("points", len(r.Points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// insertPoints sends all points in one block through a prepared batch.
func (s *CHForecastStore) insertPoints(ctx context.Context, r *models.ForecastRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)", pointsTable, strings.Join(pointColumns, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range r.Points {
		day, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return fmt.Errorf("point %d date %q: %w", i+1, p.Date, err)
		}
		if _, err := stmt.ExecContext(ctx, r.RunID, uint16(i+1), day, nullable(p.Predicted), nullable(p.Lower), nullable(p.Upper)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *CHForecastStore) Recent(ctx context.Context, ticker string, limit int) ([]*models.ForecastRun, error) {
	cols := make([]string, len(runColumns))
	for i, c := range runColumns {
		cols[i] = c
		switch c {
		case "p", "d", "q", "seasonal_p", "seasonal_d", "seasonal_q", "seasonal_period", "observations", "horizon":
			cols[i] = fmt.Sprintf("toInt64(%s)", c)
		}
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL", strings.Join(cols, ", "), runsTable)
	args := []interface{}{}
	if ticker != "" {
		q += " WHERE ticker = ?"
		args = append(args, strings.ToUpper(ticker))
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent_runs query error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*models.ForecastRun
	for rows.Next() {
		var created time.Time
		r, err := scanRun(rows, &created)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = created.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHForecastStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHForecastStore) Close() error {
	return s.client.Close()
}

func (s *CHForecastStore) logError(op string, r *models.ForecastRun, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+op+" error",
		applogger.String("run_id", r.RunID),
		applogger.String("ticker", r.Ticker),
		applogger.Error(err),
	)
}

var _ domrepo.ForecastStore = (*CHForecastStore)(nil)
