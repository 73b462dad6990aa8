package analytics

import (
	"context"
	"fmt"
	"math"

	"StockForecaster/internal/domain/models"
	domsvc "StockForecaster/internal/domain/service"

	"github.com/sartorproj/goarima/stats"
)

// DefaultSignificance is the p-value below which a series is called stationary.
const DefaultSignificance = 0.05

// ADFTester runs the augmented Dickey-Fuller test with automatic lag selection.
type ADFTester struct {
	threshold float64
}

func NewADFTester(threshold float64) *ADFTester {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultSignificance
	}
	return &ADFTester{threshold: threshold}
}

func (t *ADFTester) Test(ctx context.Context, s *models.SelectedSeries) (*models.StationarityResult, error) {
	series, err := toSeries(s)
	if err != nil {
		return nil, err
	}

	var res *stats.ADFResult
	if err := runCtx(ctx, func() error {
		res = stats.ADF(series, 0)
		return nil
	}); err != nil {
		return nil, err
	}
	if res == nil || math.IsNaN(res.Statistic) || math.IsNaN(res.PValue) {
		return nil, fmt.Errorf("%w: adf needs at least 10 non-degenerate observations, got %d", ErrInsufficientData, s.Len())
	}

	return &models.StationarityResult{
		Ticker:         s.Ticker,
		Column:         s.Column,
		Statistic:      models.Float(res.Statistic),
		PValue:         models.Float(res.PValue),
		Lags:           res.Lags,
		NObs:           res.NObs,
		CriticalValues: res.CriticalVals,
		Threshold:      t.threshold,
		IsStationary:   res.PValue < t.threshold,
	}, nil
}

var _ domsvc.StationarityTester = (*ADFTester)(nil)
