package api

import (
	"context"
	"errors"
	"net/url"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/service/yahoo"
	"StockForecaster/internal/services/analytics"
	"StockForecaster/internal/services/features"
	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"
)

// toAppError maps pipeline errors onto API errors.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr    *xhttp.AppError
		apiErr    *yahoo.APIError
		statusErr *xhttp.StatusError
		urlErr    *url.Error
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, yahoo.ErrNoData), errors.Is(err, usecase.ErrNoData), errors.Is(err, features.ErrEmptyTable):
		return xhttp.NoDataErrorf("no price data for the selected ticker and date range").WithError(err)
	case errors.Is(err, features.ErrUnknownColumn):
		return xhttp.BadRequestError("column", "unknown price column").WithError(err)
	case errors.Is(err, models.ErrInvalidRange):
		return xhttp.BadRequestError("end", models.ErrInvalidRange.Error()).WithError(err)
	case errors.Is(err, analytics.ErrInsufficientData):
		return xhttp.UnprocessableError(xhttp.CodeInsufficientData, "not enough observations for this analysis").WithError(err)
	case errors.Is(err, analytics.ErrModelFit):
		return xhttp.UnprocessableError(xhttp.CodeModelFit, "model could not be fitted").WithError(err)
	case errors.Is(err, usecase.ErrNoStore):
		return xhttp.NotFoundError("forecast history is not recorded on this server").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("forecast run timed out").WithError(err)
	case errors.As(err, &apiErr), errors.As(err, &statusErr), errors.As(err, &urlErr):
		return xhttp.UpstreamError("market data provider failed").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
