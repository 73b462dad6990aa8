package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	domsvc "StockForecaster/internal/domain/service"
	"StockForecaster/pkg/util"

	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"
)

// AutoOptions bounds the automatic order search.
type AutoOptions struct {
	SeasonalPeriod int
	MaxP           int
	MaxD           int
	MaxQ           int
	Criterion      string
}

// DefaultAutoOptions mirrors a seasonal search with period 12 ranked by AIC.
func DefaultAutoOptions() AutoOptions {
	return AutoOptions{SeasonalPeriod: 12, MaxP: 3, MaxD: 2, MaxQ: 3, Criterion: "aic"}
}

// SARIMAFitter fits seasonal ARIMA models with goarima.
type SARIMAFitter struct {
	auto AutoOptions
}

func NewSARIMAFitter(auto AutoOptions) *SARIMAFitter {
	def := DefaultAutoOptions()
	if auto.MaxP <= 0 {
		auto.MaxP = def.MaxP
	}
	if auto.MaxQ <= 0 {
		auto.MaxQ = def.MaxQ
	}
	if auto.MaxD < 0 {
		auto.MaxD = def.MaxD
	}
	if auto.Criterion != "aic" && auto.Criterion != "bic" {
		auto.Criterion = def.Criterion
	}
	return &SARIMAFitter{auto: auto}
}

// MinObservations is the shortest series goarima accepts for order o.
func MinObservations(o models.ModelOrder) int {
	return o.P + o.Q + o.D + (o.SP+o.SD+o.SQ)*o.M + 20
}

// FitManual fits the given order.
func (f *SARIMAFitter) FitManual(ctx context.Context, s *models.SelectedSeries, order models.ModelOrder) (domsvc.Model, error) {
	series, err := toSeries(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFit, err)
	}
	if !order.Seasonal() {
		order.SP, order.SD, order.SQ, order.M = 0, 0, 0, 0
	}
	if need := MinObservations(order); s.Len() < need {
		return nil, fmt.Errorf("%w: %s needs at least %d observations, got %d", ErrModelFit, order, need, s.Len())
	}

	start := time.Now()
	m, err := fitOrder(ctx, series, order)
	if err != nil {
		return nil, err
	}
	m.mode, m.evaluated, m.elapsed = models.ModeManual, 1, time.Since(start)
	return m, nil
}

// FitAuto searches orders stepwise and refits the winner as a fresh SARIMA model.
func (f *SARIMAFitter) FitAuto(ctx context.Context, s *models.SelectedSeries) (domsvc.Model, error) {
	series, err := toSeries(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFit, err)
	}

	cfg := autoarima.DefaultConfig()
	cfg.MaxP, cfg.MaxD, cfg.MaxQ = f.auto.MaxP, f.auto.MaxD, f.auto.MaxQ
	cfg.Criterion = f.auto.Criterion
	cfg.Stepwise = true
	if f.auto.SeasonalPeriod > 1 && s.Len() >= 2*f.auto.SeasonalPeriod+20 {
		cfg.Seasonal = true
		cfg.SeasonalM = f.auto.SeasonalPeriod
	}

	start := time.Now()
	var res *autoarima.Result
	err = runCtx(ctx, func() error {
		var serr error
		res, serr = autoarima.AutoARIMA(series, cfg)
		return serr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order search: %v", ErrModelFit, err)
	}
	if res == nil || (res.Model == nil && res.SeasonalModel == nil) {
		return nil, fmt.Errorf("%w: no candidate order converged", ErrModelFit)
	}

	order := models.ModelOrder{P: res.P, D: res.D, Q: res.Q}
	if res.IsSeasonal {
		order.SP, order.SD, order.SQ, order.M = res.SP, res.SD, res.SQ, res.M
	}
	m, err := fitOrder(ctx, series, order)
	if err != nil {
		return nil, err
	}
	m.mode, m.evaluated, m.elapsed = models.ModeAuto, res.ModelsEvaluated, time.Since(start)
	return m, nil
}

// fitOrder fits o on series. sarima integrates every non-seasonal difference
// from the last observed value, which only holds for d <= 1, so higher orders are
// differenced here down to d = 1 and the forecasts summed back up in Forecast.
func fitOrder(ctx context.Context, series *timeseries.Series, o models.ModelOrder) (*fittedModel, error) {
	inner := series
	var levels []float64
	for i := 1; i < o.D; i++ {
		if inner.Len() < 2 {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelFit, o, ErrInsufficientData)
		}
		levels = append(levels, inner.Values[inner.Len()-1])
		inner = inner.Diff()
	}
	d := o.D
	if d > 1 {
		d = 1
	}

	m := sarima.New(o.P, d, o.Q, o.SP, o.SD, o.SQ, o.M)
	err := runCtx(ctx, func() error { return m.Fit(inner) })
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrModelFit) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelFit, o, err)
	}
	return &fittedModel{model: m, order: o, levels: levels, nobs: series.Len()}, nil
}

// undifference reverses the differencing recorded in levels, innermost first.
// levels[k] is the last value of the series differenced k times.
func undifference(v []float64, levels []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	for k := len(levels) - 1; k >= 0; k-- {
		acc := levels[k]
		for j := range out {
			acc += out[j]
			out[j] = acc
		}
	}
	return out
}

type fittedModel struct {
	model     *sarima.Model
	order     models.ModelOrder
	levels    []float64
	nobs      int
	mode      string
	evaluated int
	elapsed   time.Duration
}

func (f *fittedModel) Summary() *models.FittedModel {
	sum := f.model.Summary()
	if sum == nil {
		return nil
	}
	order := f.order
	out := &models.FittedModel{
		Mode:            f.mode,
		Order:           order,
		Spec:            order.String(),
		ARCoeffs:        models.Floats(sum.ARCoeffs),
		MACoeffs:        models.Floats(sum.MACoeffs),
		SARCoeffs:       models.Floats(sum.SARCoeffs),
		SMACoeffs:       models.Floats(sum.SMACoeffs),
		Intercept:       models.Float(sum.Intercept),
		Variance:        models.Float(sum.Variance),
		AIC:             models.Float(sum.AIC),
		AICc:            models.Float(sum.AICc),
		BIC:             models.Float(sum.BIC),
		LogLik:          models.Float(sum.LogLik),
		NObs:            f.nobs,
		ModelsEvaluated: f.evaluated,
		FitMillis:       f.elapsed.Milliseconds(),
	}
	if lb := sum.LjungBox; lb != nil {
		out.LjungBox = &models.LjungBox{Statistic: models.Float(lb.Statistic), PValue: models.Float(lb.PValue), Lags: lb.Lags}
	}
	return out
}

func (f *fittedModel) Forecast(steps int, confidence float64) ([]float64, []float64, []float64, error) {
	point, lower, upper, err := f.model.PredictWithInterval(steps, confidence)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrModelFit, err)
	}
	if len(f.levels) > 0 {
		// the interval keeps the width of the differenced model
		whole := undifference(point, f.levels)
		for i := range whole {
			shift := whole[i] - point[i]
			lower[i] += shift
			upper[i] += shift
		}
		point = whole
	}
	if !allFinite(point, lower, upper) {
		return nil, nil, nil, fmt.Errorf("%w: forecast is not finite", ErrModelFit)
	}
	return point, lower, upper, nil
}

// BuildForecast forecasts h steps past the last observation of s and dates the
// rows as consecutive calendar days starting the day after it.
func BuildForecast(m domsvc.Model, s *models.SelectedSeries, h int, confidence float64) ([]models.ForecastRow, error) {
	if h < 1 {
		return nil, fmt.Errorf("horizon must be at least 1, got %d", h)
	}
	last, ok := util.ParseTime(s.LastDate())
	if !ok {
		return nil, fmt.Errorf("%w: series has no last date", ErrInsufficientData)
	}
	point, lower, upper, err := m.Forecast(h, confidence)
	if err != nil {
		return nil, err
	}
	dates := util.ForecastDates(last, h)
	if len(point) != len(dates) {
		return nil, fmt.Errorf("%w: got %d forecasts for horizon %d", ErrModelFit, len(point), h)
	}
	rows := make([]models.ForecastRow, h)
	for i := range rows {
		rows[i] = models.ForecastRow{
			Date:      util.FormatDate(dates[i]),
			Predicted: models.Float(point[i]),
			Lower:     models.Float(lower[i]),
			Upper:     models.Float(upper[i]),
		}
	}
	return rows, nil
}

var _ domsvc.ModelFitter = (*SARIMAFitter)(nil)
