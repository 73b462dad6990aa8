package analytics

import (
	"context"
	"fmt"

	"StockForecaster/internal/domain/models"
	domsvc "StockForecaster/internal/domain/service"

	"github.com/sartorproj/goarima/stats"
)

const (
	Additive       = "additive"
	Multiplicative = "multiplicative"
)

// ClassicalDecomposer performs moving-average seasonal decomposition.
type ClassicalDecomposer struct{}

func NewClassicalDecomposer() *ClassicalDecomposer { return &ClassicalDecomposer{} }

func (ClassicalDecomposer) Decompose(ctx context.Context, s *models.SelectedSeries, period int, model string) (*models.Decomposition, error) {
	if model != Additive && model != Multiplicative {
		return nil, fmt.Errorf("unsupported decomposition model %q", model)
	}
	if period < 2 {
		return nil, fmt.Errorf("%w: period must be at least 2", ErrInsufficientData)
	}
	series, err := toSeries(s)
	if err != nil {
		return nil, err
	}

	var res *stats.DecompositionResult
	if err := runCtx(ctx, func() error {
		res = stats.Decompose(series, period, model)
		return nil
	}); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: decomposition with period %d needs at least %d observations, got %d",
			ErrInsufficientData, period, 2*period, s.Len())
	}

	dates := make([]string, len(s.Dates))
	copy(dates, s.Dates)
	return &models.Decomposition{
		Ticker:   s.Ticker,
		Column:   s.Column,
		Model:    model,
		Period:   period,
		Dates:    dates,
		Observed: models.Floats(s.Values),
		Trend:    models.Floats(res.Trend.Values),
		Seasonal: models.Floats(res.Seasonal.Values),
		Residual: models.Floats(res.Residual.Values),
	}, nil
}

var _ domsvc.Decomposer = ClassicalDecomposer{}
