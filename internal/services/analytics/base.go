package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/services/features"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sartorproj/goarima/timeseries"
)

var (
	// ErrInsufficientData means the series is too short or degenerate for the statistic.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelFit means no model could be fitted or it produced unusable forecasts.
	ErrModelFit = errors.New("model fit failed")
)

var (
	abandonedFits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockforecaster_abandoned_fits_total",
		Help: "Statistical routines still running after their request gave up",
	})
	abandonedRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockforecaster_abandoned_fits_running",
		Help: "Abandoned statistical routines that have not finished yet",
	})
)

// toSeries converts a selected series into a goarima series with its trading dates.
func toSeries(s *models.SelectedSeries) (*timeseries.Series, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	ts, err := timeseries.NewWithTimestamps(features.Timestamps(s), values)
	if err != nil {
		return nil, fmt.Errorf("build series: %w", err)
	}
	ts.Name = s.Column
	return ts, nil
}

// runCtx runs fn in a goroutine and returns early when ctx is done.
// The goarima routines are not cancellable, so fn keeps running to completion in that case.
func runCtx(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: panic: %v", ErrModelFit, r)
			}
		}()
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abandonedFits.Inc()
		abandonedRunning.Inc()
		go func() {
			<-done
			abandonedRunning.Dec()
		}()
		return ctx.Err()
	}
}

func allFinite(vs ...[]float64) bool {
	for _, v := range vs {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
