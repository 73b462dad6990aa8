package service

import (
	"context"

	"StockForecaster/internal/domain/models"
)

// StationarityTester runs a unit-root test on a selected series.
type StationarityTester interface {
	Test(ctx context.Context, s *models.SelectedSeries) (*models.StationarityResult, error)
}

// Decomposer splits a series into trend, seasonal and residual components.
type Decomposer interface {
	Decompose(ctx context.Context, s *models.SelectedSeries, period int, model string) (*models.Decomposition, error)
}

// Model is a fitted forecasting model.
type Model interface {
	Summary() *models.FittedModel
	// Forecast returns point forecasts with lower/upper bounds for steps ahead.
	Forecast(steps int, confidence float64) (point, lower, upper []float64, err error)
}

// ModelFitter fits a model with a given order or searches for one.
type ModelFitter interface {
	FitManual(ctx context.Context, s *models.SelectedSeries, order models.ModelOrder) (Model, error)
	FitAuto(ctx context.Context, s *models.SelectedSeries) (Model, error)
}
