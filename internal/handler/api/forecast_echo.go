package api

import (
	"context"
	"net/http"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/service/metrics"
	"StockForecaster/internal/service/ratelimit"
	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"
	xlogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Defaults are the configured values request defaults are taken from.
type Defaults struct {
	Tickers         []string
	DefaultStart    string
	DecomposePeriod int
	DecomposeModel  string
	SeasonalPeriod  int
}

// HealthChecker reports the health of the forecast store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// History lists recorded forecast runs.
type History interface {
	Recent(ctx context.Context, ticker string, limit int) ([]*models.ForecastRun, error)
}

// ForecastEchoHandler serves the forecasting JSON API.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	fc       *usecase.Forecaster
	history  History
	health   HealthChecker
	limiter  *ratelimit.Limiter
	defaults Defaults
	today    func() time.Time
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	fc *usecase.Forecaster,
	history History,
	health HealthChecker,
	limiter *ratelimit.Limiter,
	defaults Defaults,
) *ForecastEchoHandler {
	metrics.Register()
	allowed := make(map[string]struct{}, len(defaults.Tickers))
	for _, t := range defaults.Tickers {
		allowed[t] = struct{}{}
	}
	_ = xhttp.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		_, ok := allowed[fl.Field().String()]
		return ok
	})
	return &ForecastEchoHandler{
		logger:   logger,
		fc:       fc,
		history:  history,
		health:   health,
		limiter:  limiter,
		defaults: defaults,
		today:    util.Today,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/tickers", h.Tickers)
	g.GET("/prices", h.Prices)
	g.GET("/series", h.Series)
	g.GET("/stationarity", h.Stationarity)
	g.GET("/decomposition", h.Decomposition)
	g.GET("/forecasts", h.History)

	// model fitting is rate limited per client
	var fit []echo.MiddlewareFunc
	if h.limiter != nil {
		fit = append(fit, h.limiter.Middleware())
	}
	g.GET("/forecast", h.Forecast, fit...)
	g.GET("/dashboard", h.Dashboard, fit...)
}

// prefill sets configured defaults ahead of the struct-tag defaults.
func (h *ForecastEchoHandler) prefill(q *models.PriceQuery) {
	if len(h.defaults.Tickers) > 0 {
		q.Ticker = h.defaults.Tickers[0]
	}
	q.Start = h.defaults.DefaultStart
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	metrics.Observe(endpoint, start, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" request rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *ForecastEchoHandler) invalid(c echo.Context, endpoint string, start time.Time, verr []xhttp.ValidationError) error {
	metrics.Observe(endpoint, start, xhttp.CodeBadRequest)
	return xhttp.BadRequestResponse(c, verr)
}

func (h *ForecastEchoHandler) ok(c echo.Context, endpoint string, start time.Time, data interface{}) error {
	metrics.Observe(endpoint, start, "")
	return xhttp.SuccessResponse(c, data)
}

func (h *ForecastEchoHandler) Tickers(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"tickers":          h.defaults.Tickers,
		"columns":          models.ValueColumns,
		"default_start":    h.defaults.DefaultStart,
		"decompose_period": h.defaults.DecomposePeriod,
		"decompose_model":  h.defaults.DecomposeModel,
		"seasonal_period":  h.defaults.SeasonalPeriod,
	})
}

func (h *ForecastEchoHandler) Prices(c echo.Context) error {
	start := time.Now()
	req := &models.PriceQuery{}
	h.prefill(req)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "prices", start, verr)
	}
	from, to, err := req.Range(h.today())
	if err != nil {
		return h.fail(c, "prices", start, err)
	}

	res, err := h.fc.Prices(c.Request().Context(), models.SeriesParams{Ticker: req.Ticker, Start: from, End: to})
	if err != nil {
		return h.fail(c, "prices", start, err)
	}
	return h.ok(c, "prices", start, res)
}

func (h *ForecastEchoHandler) seriesParams(c echo.Context, req *models.SeriesQuery) (models.SeriesParams, []xhttp.ValidationError, error) {
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return models.SeriesParams{}, verr, nil
	}
	p, err := req.Params(h.today())
	return p, nil, err
}

func (h *ForecastEchoHandler) Series(c echo.Context) error {
	start := time.Now()
	req := &models.SeriesQuery{}
	h.prefill(&req.PriceQuery)
	p, verr, err := h.seriesParams(c, req)
	if verr != nil {
		return h.invalid(c, "series", start, verr)
	}
	if err != nil {
		return h.fail(c, "series", start, err)
	}

	res, err := h.fc.Series(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "series", start, err)
	}
	return h.ok(c, "series", start, res)
}

func (h *ForecastEchoHandler) Stationarity(c echo.Context) error {
	start := time.Now()
	req := &models.SeriesQuery{}
	h.prefill(&req.PriceQuery)
	p, verr, err := h.seriesParams(c, req)
	if verr != nil {
		return h.invalid(c, "stationarity", start, verr)
	}
	if err != nil {
		return h.fail(c, "stationarity", start, err)
	}

	res, err := h.fc.Stationarity(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "stationarity", start, err)
	}
	return h.ok(c, "stationarity", start, res)
}

func (h *ForecastEchoHandler) Decomposition(c echo.Context) error {
	start := time.Now()
	req := &models.DecompositionQuery{Period: h.defaults.DecomposePeriod, Model: h.defaults.DecomposeModel}
	h.prefill(&req.PriceQuery)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "decomposition", start, verr)
	}
	p, err := req.Params(h.today())
	if err != nil {
		return h.fail(c, "decomposition", start, err)
	}

	res, err := h.fc.Decomposition(c.Request().Context(), p, req.Period, req.Model)
	if err != nil {
		return h.fail(c, "decomposition", start, err)
	}
	return h.ok(c, "decomposition", start, res)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	req := &models.DashboardQuery{}
	h.prefillForecast(req)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "forecast", start, verr)
	}
	p, err := req.Params(h.today())
	if err != nil {
		return h.fail(c, "forecast", start, err)
	}

	res, err := h.fc.Forecast(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "forecast", start, err)
	}
	return h.ok(c, "forecast", start, res)
}

func (h *ForecastEchoHandler) Dashboard(c echo.Context) error {
	start := time.Now()
	req := &models.DashboardQuery{}
	h.prefillForecast(req)
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "dashboard", start, verr)
	}
	p, err := req.Params(h.today())
	if err != nil {
		return h.fail(c, "dashboard", start, err)
	}

	res, err := h.fc.Run(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "dashboard", start, err)
	}
	return h.ok(c, "dashboard", start, res)
}

func (h *ForecastEchoHandler) prefillForecast(req *models.DashboardQuery) {
	h.prefill(&req.PriceQuery)
	req.SeasonalPeriod = h.defaults.SeasonalPeriod
	req.DecomposePeriod = h.defaults.DecomposePeriod
	req.DecomposeModel = h.defaults.DecomposeModel
}

func (h *ForecastEchoHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.invalid(c, "forecasts", start, verr)
	}
	if h.history == nil {
		return h.fail(c, "forecasts", start, usecase.ErrNoStore)
	}

	runs, err := h.history.Recent(c.Request().Context(), req.Ticker, req.Limit)
	if err != nil {
		return h.fail(c, "forecasts", start, err)
	}
	metrics.Observe("forecasts", start, "")
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	body := map[string]string{"status": "ok", "store": "ok"}
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Health(ctx); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, body)
		}
	}
	return xhttp.SuccessResponse(c, body)
}
