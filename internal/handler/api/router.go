package api

import (
	xhttp "StockForecaster/pkg/http"

	"github.com/labstack/echo/v4"
)

// Router mounts several handlers on one echo instance.
type Router []xhttp.Handler

func NewRouter(page *DashboardPageHandler, forecast *ForecastEchoHandler, progress *ProgressWSHandler) Router {
	return Router{page, forecast, progress}
}

func (r Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
