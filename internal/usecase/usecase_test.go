package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"StockForecaster/internal/domain/models"
	domsvc "StockForecaster/internal/domain/service"
	"StockForecaster/pkg/cache"
	"StockForecaster/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMarket struct {
	mock.Mock
}

func (m *mockMarket) FetchDaily(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceBar, error) {
	args := m.Called(ctx, ticker, start, end)
	bars, _ := args.Get(0).([]models.PriceBar)
	return bars, args.Error(1)
}

type stubTester struct{ err error }

func (s stubTester) Test(_ context.Context, ser *models.SelectedSeries) (*models.StationarityResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.StationarityResult{Ticker: ser.Ticker, PValue: 0.01, Threshold: 0.05, IsStationary: true}, nil
}

type stubDecomposer struct{}

func (stubDecomposer) Decompose(_ context.Context, s *models.SelectedSeries, period int, model string) (*models.Decomposition, error) {
	return &models.Decomposition{Ticker: s.Ticker, Period: period, Model: model, Dates: s.Dates}, nil
}

type stubModel struct{ spec string }

func (m stubModel) Summary() *models.FittedModel {
	return &models.FittedModel{Spec: m.spec}
}

func (m stubModel) Forecast(steps int, _ float64) ([]float64, []float64, []float64, error) {
	p := make([]float64, steps)
	for i := range p {
		p[i] = 42
	}
	return p, p, p, nil
}

type stubFitter struct {
	err      error
	gotOrder models.ModelOrder
	gotAuto  bool
	mu       sync.Mutex
}

func (f *stubFitter) FitManual(_ context.Context, _ *models.SelectedSeries, o models.ModelOrder) (domsvc.Model, error) {
	f.mu.Lock()
	f.gotOrder = o
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return stubModel{spec: o.String()}, nil
}

func (f *stubFitter) FitAuto(context.Context, *models.SelectedSeries) (domsvc.Model, error) {
	f.mu.Lock()
	f.gotAuto = true
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return stubModel{spec: "ARIMA(1,1,1)"}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*models.ForecastRun
	err   error
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Save(_ context.Context, r *models.ForecastRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}
func (s *fakeStore) Recent(context.Context, string, int) ([]*models.ForecastRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakePublisher struct {
	published []*models.ForecastRun
}

func (p *fakePublisher) Publish(_ context.Context, r *models.ForecastRun) error {
	p.published = append(p.published, r)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func testBars(n int) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		p := 100 + float64(i%7)
		bars[i] = models.PriceBar{Date: testStart.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, AdjClose: p, Volume: 10}
	}
	return bars
}

func testParams() models.ForecastParams {
	return models.ForecastParams{
		SeriesParams:    models.SeriesParams{Ticker: "AAPL", Start: testStart, End: testEnd, Column: models.ColClose},
		RunID:           "run-1",
		Mode:            models.ModeManual,
		Order:           models.MirroredOrder(1, 1, 1, 12),
		Horizon:         5,
		DecomposePeriod: 7,
		DecomposeModel:  "additive",
	}
}

func TestPricesLoadUsesCache(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(30), nil).Once()

	mc := cache.NewMemoryCache()
	defer mc.Close()
	uc := NewPricesUseCase(market, mc, time.Hour, nil, nil)

	first, err := uc.Load(context.Background(), "aapl", testStart, testEnd)
	require.NoError(t, err)
	second, err := uc.Load(context.Background(), "AAPL", testStart, testEnd)
	require.NoError(t, err)

	assert.Equal(t, 30, first.Len())
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, models.ColDate, second.Columns[0])
	market.AssertNumberOfCalls(t, "FetchDaily", 1)

	ok, err := mc.Exists(context.Background(), PricesKey("AAPL", testStart, testEnd))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPricesLoadEmpty(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "MSFT", testStart, testEnd).Return(nil, nil)

	uc := NewPricesUseCase(market, nil, time.Hour, nil, nil)
	_, err := uc.Load(context.Background(), "MSFT", testStart, testEnd)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPricesKey(t *testing.T) {
	assert.Equal(t, "prices:AAPL:2024-01-01:2024-03-01", PricesKey("aapl", testStart, testEnd))
}

func newTestForecaster(market *mockMarket, tester stubTester, fitter *stubFitter, rec RunRecorder) *Forecaster {
	prices := NewPricesUseCase(market, nil, time.Hour, nil, nil)
	return NewForecaster(prices, tester, stubDecomposer{}, fitter, NewProgressHub(64), rec, nil, nil, ForecastOptions{})
}

func TestRunProducesReport(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(40), nil)
	store := &fakeStore{}
	fitter := &stubFitter{}
	f := newTestForecaster(market, stubTester{}, fitter, NewForecastRecorder(config.BackendSQLite, store, nil, nil))

	events, cancel := f.Hub().Subscribe("run-1")
	defer cancel()

	rep, err := f.Run(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 40, rep.Prices.Len())
	assert.Equal(t, 40, rep.Series.Len())
	require.NotNil(t, rep.Stationarity)
	require.NotNil(t, rep.Decomposition)
	assert.Equal(t, 7, rep.Decomposition.Period)
	assert.Nil(t, rep.Errors)
	require.Len(t, rep.Forecast.Rows, 5)
	assert.Equal(t, "2024-02-10", rep.Forecast.Rows[0].Date)
	assert.Equal(t, "SARIMA(1,1,1)(1,1,1)[12]", rep.Forecast.Model.Spec)
	assert.Equal(t, models.MirroredOrder(1, 1, 1, 12), fitter.gotOrder)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "run-1", store.saved[0].RunID)
	assert.Equal(t, 5, len(store.saved[0].Points))

	var got []models.ProgressEvent
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, models.StageFetch, got[0].Stage)
	assert.Equal(t, models.StatusStarted, got[0].Status)
	assert.True(t, got[len(got)-1].Terminal())
	assert.Equal(t, models.StageDone, got[len(got)-1].Stage)
}

func TestRunKeepsDiagnosticErrors(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(40), nil)
	f := newTestForecaster(market, stubTester{err: errors.New("singular")}, &stubFitter{}, nil)

	rep, err := f.Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Nil(t, rep.Stationarity)
	assert.Contains(t, rep.Errors[models.StageStationarity], "singular")
	assert.NotNil(t, rep.Forecast)
}

func TestRunAbortsOnFitFailure(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(40), nil)
	fitErr := errors.New("no convergence")
	f := newTestForecaster(market, stubTester{}, &stubFitter{err: fitErr}, nil)

	events, cancel := f.Hub().Subscribe("run-1")
	defer cancel()

	_, err := f.Run(context.Background(), testParams())
	require.ErrorIs(t, err, fitErr)

	var last models.ProgressEvent
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, models.StageFailed, last.Stage)
}

func TestRunAutoModeAndGeneratedRunID(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(40), nil)
	fitter := &stubFitter{}
	f := newTestForecaster(market, stubTester{}, fitter, nil)

	p := testParams()
	p.RunID = ""
	p.Mode = models.ModeAuto
	rep, err := f.Run(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, fitter.gotAuto)
	assert.Len(t, rep.RunID, 36)
}

func TestRunFetchFailure(t *testing.T) {
	market := new(mockMarket)
	upstream := errors.New("503")
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(nil, upstream)
	f := newTestForecaster(market, stubTester{}, &stubFitter{}, nil)

	_, err := f.Run(context.Background(), testParams())
	assert.ErrorIs(t, err, upstream)
}

func TestPartialEntryPoints(t *testing.T) {
	market := new(mockMarket)
	market.On("FetchDaily", mock.Anything, "AAPL", testStart, testEnd).Return(testBars(20), nil)
	f := newTestForecaster(market, stubTester{}, &stubFitter{}, nil)
	p := testParams()

	s, err := f.Series(context.Background(), p.SeriesParams)
	require.NoError(t, err)
	assert.Equal(t, models.ColClose, s.Column)

	st, err := f.Stationarity(context.Background(), p.SeriesParams)
	require.NoError(t, err)
	assert.True(t, st.IsStationary)

	d, err := f.Decomposition(context.Background(), p.SeriesParams, 5, "multiplicative")
	require.NoError(t, err)
	assert.Equal(t, "multiplicative", d.Model)

	fc, err := f.Forecast(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, fc.Rows, 5)
	assert.Equal(t, "2024-01-21", fc.Rows[0].Date)

	p.Column = "Date"
	_, err = f.Series(context.Background(), p.SeriesParams)
	assert.Error(t, err)
}

func TestRecorderRouting(t *testing.T) {
	run := &models.ForecastRun{RunID: "r", Ticker: "AAPL", CreatedAt: time.Now()}

	require.NoError(t, NewForecastRecorder(config.BackendNone, nil, nil, nil).Record(context.Background(), run))

	store := &fakeStore{}
	require.NoError(t, NewForecastRecorder(config.BackendClickHouse, store, nil, nil).Record(context.Background(), run))
	assert.Len(t, store.saved, 1)

	pub := &fakePublisher{}
	require.NoError(t, NewForecastRecorder(config.BackendKafka, store, pub, nil).Record(context.Background(), run))
	assert.Len(t, pub.published, 1)
	assert.Len(t, store.saved, 1)

	assert.Error(t, NewForecastRecorder("postgres", nil, nil, nil).Record(context.Background(), run))
	assert.Error(t, NewForecastRecorder(config.BackendKafka, nil, nil, nil).Record(context.Background(), run))

	_, err := NewForecastRecorder(config.BackendNone, nil, nil, nil).Recent(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestProgressHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewProgressHub(1)
	ch, cancel := hub.Subscribe("x")

	hub.Emit("x", models.StageFetch, models.StatusStarted, "")
	hub.Emit("x", models.StageFetch, models.StatusCompleted, "")
	hub.Emit("other", models.StageFetch, models.StatusStarted, "")

	ev := <-ch
	assert.Equal(t, models.StatusStarted, ev.Status)
	assert.False(t, ev.At.IsZero())
	assert.Len(t, ch, 0)

	assert.Equal(t, 1, hub.Subscribers("x"))
	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers("x"))
	_, open := <-ch
	assert.False(t, open)
}

func TestKafkaForecastHandler(t *testing.T) {
	store := &fakeStore{}
	h := NewKafkaForecastHandler("forecasts", config.BackendSQLite, store, nil)
	assert.Equal(t, "forecasts", h.Topic())

	run := &models.ForecastRun{RunID: "r1", Ticker: "AAPL", CreatedAt: time.Now(), Horizon: 1, Points: []models.ForecastRow{{Date: "2024-01-02"}}}
	b, err := json.Marshal(models.ForecastEvent{Type: models.EventForecastCompleted, Run: run})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "r1", store.saved[0].RunID)

	other, _ := json.Marshal(models.ForecastEvent{Type: "forecast.deleted"})
	assert.NoError(t, h.Handle(context.Background(), other))
	assert.Len(t, store.saved, 1)

	assert.Error(t, h.Handle(context.Background(), []byte("{")))

	invalid, _ := json.Marshal(models.ForecastEvent{Type: models.EventForecastCompleted, Run: &models.ForecastRun{}})
	assert.ErrorIs(t, h.Handle(context.Background(), invalid), models.ErrInvalidRun)
}
