package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	domsvc "StockForecaster/internal/domain/service"
	"StockForecaster/internal/services/analytics"
	"StockForecaster/internal/services/features"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"github.com/google/uuid"
)

const (
	defaultRunTimeout    = 2 * time.Minute
	defaultConfidence    = 0.95
	defaultRecordTimeout = 10 * time.Second
)

// ForecastOptions tunes the forecasting pipeline.
type ForecastOptions struct {
	Confidence float64
	RunTimeout time.Duration
}

// Forecaster runs the stages fetch, reshape, select, stationarity, decompose,
// fit and forecast, timing each stage and announcing it on the progress hub.
type Forecaster struct {
	prices     *PricesUseCase
	tester     domsvc.StationarityTester
	decomposer domsvc.Decomposer
	fitter     domsvc.ModelFitter
	hub        *ProgressHub
	recorder   RunRecorder
	metrics    domrepo.Metrics
	log        *logger.Logger
	opts       ForecastOptions

	now   func() time.Time
	newID func() string
}

func NewForecaster(
	prices *PricesUseCase,
	tester domsvc.StationarityTester,
	decomposer domsvc.Decomposer,
	fitter domsvc.ModelFitter,
	hub *ProgressHub,
	recorder RunRecorder,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ForecastOptions,
) *Forecaster {
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = defaultConfidence
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if metrics == nil {
		metrics = domrepo.NoopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if hub == nil {
		hub = NewProgressHub(0)
	}
	return &Forecaster{
		prices:     prices,
		tester:     tester,
		decomposer: decomposer,
		fitter:     fitter,
		hub:        hub,
		recorder:   recorder,
		metrics:    metrics,
		log:        log,
		opts:       opts,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Hub returns the progress hub events are published on.
func (f *Forecaster) Hub() *ProgressHub { return f.hub }

// Prices loads the reshaped price table.
func (f *Forecaster) Prices(ctx context.Context, p models.SeriesParams) (*models.PriceTable, error) {
	var tbl *models.PriceTable
	err := f.stage(ctx, "", models.StageFetch, func(ctx context.Context) (string, error) {
		var err error
		tbl, err = f.prices.Load(ctx, p.Ticker, p.Start, p.End)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d rows", tbl.Len()), nil
	})
	return tbl, err
}

// Series loads prices and narrows them to {Date, column}.
func (f *Forecaster) Series(ctx context.Context, p models.SeriesParams) (*models.SelectedSeries, error) {
	tbl, err := f.Prices(ctx, p)
	if err != nil {
		return nil, err
	}
	return f.selectSeries(ctx, "", tbl, p.Column)
}

// Stationarity runs the ADF test on the selected series.
func (f *Forecaster) Stationarity(ctx context.Context, p models.SeriesParams) (*models.StationarityResult, error) {
	s, err := f.Series(ctx, p)
	if err != nil {
		return nil, err
	}
	return f.stationarity(ctx, "", s)
}

// Decomposition splits the selected series into trend, seasonal and residual.
func (f *Forecaster) Decomposition(ctx context.Context, p models.SeriesParams, period int, model string) (*models.Decomposition, error) {
	s, err := f.Series(ctx, p)
	if err != nil {
		return nil, err
	}
	return f.decompose(ctx, "", s, period, model)
}

// Forecast fits a model to the selected series and forecasts p.Horizon days.
func (f *Forecaster) Forecast(ctx context.Context, p models.ForecastParams) (*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.RunTimeout)
	defer cancel()

	s, err := f.Series(ctx, p.SeriesParams)
	if err != nil {
		return nil, err
	}
	m, err := f.fit(ctx, p.RunID, s, p.Mode, p.Order)
	if err != nil {
		return nil, err
	}
	return f.forecast(ctx, p.RunID, s, m, p.Horizon)
}

// Run executes the full pipeline and returns the dashboard report. Stationarity
// and decomposition failures are kept in Report.Errors; any other failure
// aborts the run.
func (f *Forecaster) Run(ctx context.Context, p models.ForecastParams) (rep *models.Report, err error) {
	if p.RunID == "" {
		p.RunID = f.newID()
	}
	started := f.now()
	log := f.log.With(logger.String("run_id", p.RunID), logger.String("ticker", p.Ticker))

	ctx, cancel := context.WithTimeout(ctx, f.opts.RunTimeout)
	defer cancel()

	defer func() {
		if err != nil {
			f.hub.Emit(p.RunID, models.StageFailed, models.StatusFailed, err.Error())
			log.Warn("forecast run failed", logger.Error(err), logger.Duration("elapsed", time.Since(started)))
		}
	}()

	rep = &models.Report{
		RunID:  p.RunID,
		Ticker: p.Ticker,
		Column: p.Column,
		Start:  util.FormatDate(p.Start),
		End:    util.FormatDate(p.End),
		Errors: map[string]string{},
	}

	var tbl *models.PriceTable
	if err = f.stage(ctx, p.RunID, models.StageFetch, func(ctx context.Context) (string, error) {
		var err error
		tbl, err = f.prices.Load(ctx, p.Ticker, p.Start, p.End)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d bars", tbl.Len()), nil
	}); err != nil {
		return nil, err
	}
	if err = f.stage(ctx, p.RunID, models.StageReshape, func(context.Context) (string, error) {
		if tbl.Len() == 0 || len(tbl.Columns) == 0 || tbl.Columns[0] != models.ColDate {
			return "", fmt.Errorf("%w for %s", ErrNoData, p.Ticker)
		}
		return strings.Join(tbl.Columns, ", "), nil
	}); err != nil {
		return nil, err
	}
	rep.Prices = tbl

	s, err := f.selectSeries(ctx, p.RunID, tbl, p.Column)
	if err != nil {
		return nil, err
	}
	rep.Series = s

	// The model fit does not depend on the two diagnostics, so all three run together.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		model   domsvc.Model
		fitErr  error
		station *models.StationarityResult
		decomp  *models.Decomposition
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := f.stationarity(ctx, p.RunID, s)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			rep.Errors[models.StageStationarity] = err.Error()
			return
		}
		station = v
	}()
	go func() {
		defer wg.Done()
		v, err := f.decompose(ctx, p.RunID, s, p.DecomposePeriod, p.DecomposeModel)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			rep.Errors[models.StageDecompose] = err.Error()
			return
		}
		decomp = v
	}()
	go func() {
		defer wg.Done()
		model, fitErr = f.fit(ctx, p.RunID, s, p.Mode, p.Order)
	}()
	wg.Wait()

	if fitErr != nil {
		return nil, fitErr
	}
	rep.Stationarity = station
	rep.Decomposition = decomp

	fc, err := f.forecast(ctx, p.RunID, s, model, p.Horizon)
	if err != nil {
		return nil, err
	}
	rep.Forecast = fc
	rep.GeneratedAt = f.now().UTC()
	rep.DurationMS = time.Since(started).Milliseconds()
	if len(rep.Errors) == 0 {
		rep.Errors = nil
	}

	f.metrics.RecordForecast(p.Ticker, p.Mode)
	if n := len(fc.Rows); n > 0 {
		f.metrics.RecordLastValue(p.Ticker, float64(fc.Rows[n-1].Predicted))
	}
	f.record(ctx, rep)

	f.hub.Emit(p.RunID, models.StageDone, models.StatusCompleted, fc.Model.Spec)
	log.Info("forecast run completed",
		logger.String("model", fc.Model.Spec),
		logger.Int("observations", s.Len()),
		logger.Int("horizon", p.Horizon),
		logger.Int64("duration_ms", rep.DurationMS),
	)
	return rep, nil
}

func (f *Forecaster) selectSeries(ctx context.Context, runID string, tbl *models.PriceTable, column string) (*models.SelectedSeries, error) {
	var s *models.SelectedSeries
	err := f.stage(ctx, runID, models.StageSelect, func(context.Context) (string, error) {
		var err error
		s, err = features.SelectColumn(tbl, column)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s, %d observations", column, s.Len()), nil
	})
	return s, err
}

func (f *Forecaster) stationarity(ctx context.Context, runID string, s *models.SelectedSeries) (*models.StationarityResult, error) {
	var res *models.StationarityResult
	err := f.stage(ctx, runID, models.StageStationarity, func(ctx context.Context) (string, error) {
		var err error
		res, err = f.tester.Test(ctx, s)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("p-value %.4f, stationary %t", float64(res.PValue), res.IsStationary), nil
	})
	return res, err
}

func (f *Forecaster) decompose(ctx context.Context, runID string, s *models.SelectedSeries, period int, model string) (*models.Decomposition, error) {
	var res *models.Decomposition
	err := f.stage(ctx, runID, models.StageDecompose, func(ctx context.Context) (string, error) {
		var err error
		res, err = f.decomposer.Decompose(ctx, s, period, model)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s, period %d", model, period), nil
	})
	return res, err
}

func (f *Forecaster) fit(ctx context.Context, runID string, s *models.SelectedSeries, mode string, order models.ModelOrder) (domsvc.Model, error) {
	var m domsvc.Model
	err := f.stage(ctx, runID, models.StageFit, func(ctx context.Context) (string, error) {
		var err error
		switch mode {
		case models.ModeAuto:
			m, err = f.fitter.FitAuto(ctx, s)
		case models.ModeManual, "":
			m, err = f.fitter.FitManual(ctx, s, order)
		default:
			return "", fmt.Errorf("unknown mode %q", mode)
		}
		if err != nil {
			return "", err
		}
		if sum := m.Summary(); sum != nil {
			return sum.Spec, nil
		}
		return "", nil
	})
	return m, err
}

func (f *Forecaster) forecast(ctx context.Context, runID string, s *models.SelectedSeries, m domsvc.Model, horizon int) (*models.Forecast, error) {
	var fc *models.Forecast
	err := f.stage(ctx, runID, models.StageForecast, func(context.Context) (string, error) {
		rows, err := analytics.BuildForecast(m, s, horizon, f.opts.Confidence)
		if err != nil {
			return "", err
		}
		fc = &models.Forecast{
			Ticker:     s.Ticker,
			Column:     s.Column,
			Horizon:    horizon,
			Confidence: f.opts.Confidence,
			Model:      m.Summary(),
			Rows:       rows,
		}
		return fmt.Sprintf("%d days from %s", horizon, rows[0].Date), nil
	})
	return fc, err
}

// record hands the run to the recorder. It outlives the run deadline and never
// fails the run.
func (f *Forecaster) record(ctx context.Context, rep *models.Report) {
	if f.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRecordTimeout)
	defer cancel()
	_ = f.stage(ctx, rep.RunID, models.StageRecord, func(ctx context.Context) (string, error) {
		if err := f.recorder.Record(ctx, models.NewForecastRun(rep)); err != nil {
			f.log.Warn("record forecast run", logger.String("run_id", rep.RunID), logger.Error(err))
			return "", err
		}
		return "", nil
	})
}

// stage times fn into metrics and announces it on the hub when runID is set.
func (f *Forecaster) stage(ctx context.Context, runID, name string, fn func(context.Context) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runID != "" {
		f.hub.Emit(runID, name, models.StatusStarted, "")
	}
	start := time.Now()
	msg, err := fn(ctx)
	f.metrics.RecordStage(name, time.Since(start), err)
	if runID != "" {
		if err != nil {
			f.hub.Emit(runID, name, models.StatusFailed, err.Error())
		} else {
			f.hub.Emit(runID, name, models.StatusCompleted, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
