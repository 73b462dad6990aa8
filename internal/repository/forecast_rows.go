package repository

import (
	"database/sql"
	"math"
	"strings"

	"StockForecaster/internal/domain/models"
)

const (
	runsTable   = "forecast_runs"
	pointsTable = "forecast_points"

	maxRecentLimit = 200
)

// runColumns is the column order shared by inserts and selects on forecast_runs.
var runColumns = []string{
	"run_id", "ticker", "column_name", "mode", "spec",
	"p", "d", "q", "seasonal_p", "seasonal_d", "seasonal_q", "seasonal_period",
	"start_date", "end_date", "observations", "horizon",
	"aic", "stationary", "p_value", "duration_ms", "created_at",
}

var pointColumns = []string{"run_id", "step", "date", "predicted", "lower", "upper"}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// nullable maps non-finite values to NULL.
func nullable(f models.Float) interface{} {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) models.Float {
	if !v.Valid {
		return models.Float(math.NaN())
	}
	return models.Float(v.Float64)
}

func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxRecentLimit:
		return maxRecentLimit
	}
	return limit
}

// runArgs flattens a run in runColumns order. createdAt is passed in the
// representation the backend stores.
func runArgs(r *models.ForecastRun, createdAt interface{}) []interface{} {
	o := r.Order
	return []interface{}{
		r.RunID, r.Ticker, r.Column, r.Mode, r.Spec,
		o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M,
		r.Start, r.End, r.Observations, r.Horizon,
		nullable(r.AIC), r.Stationary, nullable(r.PValue), r.DurationMS, createdAt,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun reads a forecast_runs row; created is the backend's created_at destination.
func scanRun(sc rowScanner, created interface{}) (*models.ForecastRun, error) {
	var (
		r       models.ForecastRun
		aic, pv sql.NullFloat64
	)
	o := &r.Order
	err := sc.Scan(
		&r.RunID, &r.Ticker, &r.Column, &r.Mode, &r.Spec,
		&o.P, &o.D, &o.Q, &o.SP, &o.SD, &o.SQ, &o.M,
		&r.Start, &r.End, &r.Observations, &r.Horizon,
		&aic, &r.Stationary, &pv, &r.DurationMS, created,
	)
	if err != nil {
		return nil, err
	}
	r.AIC = fromNull(aic)
	r.PValue = fromNull(pv)
	return &r, nil
}
