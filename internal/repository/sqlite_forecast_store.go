package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	pkgsqlite "StockForecaster/pkg/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS forecast_runs (
        run_id TEXT PRIMARY KEY,
        ticker TEXT NOT NULL,
        column_name TEXT NOT NULL,
        mode TEXT NOT NULL,
        spec TEXT NOT NULL,
        p INTEGER NOT NULL, d INTEGER NOT NULL, q INTEGER NOT NULL,
        seasonal_p INTEGER NOT NULL, seasonal_d INTEGER NOT NULL, seasonal_q INTEGER NOT NULL,
        seasonal_period INTEGER NOT NULL,
        start_date TEXT NOT NULL,
        end_date TEXT NOT NULL,
        observations INTEGER NOT NULL,
        horizon INTEGER NOT NULL,
        aic REAL,
        stationary INTEGER NOT NULL,
        p_value REAL,
        duration_ms INTEGER NOT NULL,
        created_at INTEGER NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_runs_ticker_created ON forecast_runs (ticker, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS forecast_points (
        run_id TEXT NOT NULL REFERENCES forecast_runs(run_id) ON DELETE CASCADE,
        step INTEGER NOT NULL,
        date TEXT NOT NULL,
        predicted REAL,
        lower REAL,
        upper REAL,
        PRIMARY KEY (run_id, step)
    )`,
}

// SQLiteForecastStore implements ForecastStore on a local SQLite file.
type SQLiteForecastStore struct {
	client *pkgsqlite.Client
	db     *sql.DB
}

func NewSQLiteForecastStore(client *pkgsqlite.Client) *SQLiteForecastStore {
	return &SQLiteForecastStore{client: client, db: client.DB()}
}

func (s *SQLiteForecastStore) Init(ctx context.Context) error {
	return s.client.Migrate(ctx, sqliteSchema)
}

// Save writes the run and its points in one transaction, replacing a run with the same id.
func (s *SQLiteForecastStore) Save(ctx context.Context, r *models.ForecastRun) error {
	if err := r.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES %s",
		runsTable, strings.Join(runColumns, ", "), placeholders(len(runColumns)))
	if _, err := tx.ExecContext(ctx, q, runArgs(r, r.CreatedAt.UnixMilli())...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+pointsTable+" WHERE run_id = ?", r.RunID); err != nil {
		return fmt.Errorf("clear points: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		pointsTable, strings.Join(pointColumns, ", "), placeholders(len(pointColumns))))
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()
	for i, p := range r.Points {
		if _, err := stmt.ExecContext(ctx, r.RunID, i+1, p.Date, nullable(p.Predicted), nullable(p.Lower), nullable(p.Upper)); err != nil {
			return fmt.Errorf("insert point %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// Recent lists runs newest first, optionally for one ticker. Points are not loaded.
func (s *SQLiteForecastStore) Recent(ctx context.Context, ticker string, limit int) ([]*models.ForecastRun, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(runColumns, ", "), runsTable)
	args := []interface{}{}
	if ticker != "" {
		q += " WHERE ticker = ?"
		args = append(args, strings.ToUpper(ticker))
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*models.ForecastRun
	for rows.Next() {
		var ms int64
		r, err := scanRun(rows, &ms)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Points returns the forecast rows of a run in step order.
func (s *SQLiteForecastStore) Points(ctx context.Context, runID string) ([]models.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, predicted, lower, upper FROM "+pointsTable+" WHERE run_id = ? ORDER BY step", runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var out []models.ForecastRow
	for rows.Next() {
		var (
			row          models.ForecastRow
			pred, lo, hi sql.NullFloat64
		)
		if err := rows.Scan(&row.Date, &pred, &lo, &hi); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		row.Predicted, row.Lower, row.Upper = fromNull(pred), fromNull(lo), fromNull(hi)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLiteForecastStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *SQLiteForecastStore) Close() error {
	return s.client.Close()
}

var _ domrepo.ForecastStore = (*SQLiteForecastStore)(nil)
