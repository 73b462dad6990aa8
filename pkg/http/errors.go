package http

import (
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeBadRequest       = "ERR_BAD_REQUEST"
	CodeNotFound         = "ERR_NOT_FOUND"
	CodeNoData           = "ERR_NO_DATA"
	CodeInsufficientData = "ERR_INSUFFICIENT_DATA"
	CodeModelFit         = "ERR_MODEL_FIT"
	CodeUpstream         = "ERR_UPSTREAM"
	CodeRateLimited      = "ERR_RATE_LIMITED"
	CodeTimeout          = "ERR_TIMEOUT"
	CodeInternal         = "ERR_INTERNAL"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

// NoDataErrorf creates a 404 error for an empty market-data result.
func NoDataErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(CodeNoData, "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

// BadRequestError creates a 400 error.
func BadRequestError(field, message string) *AppError {
	return NewAppError(CodeBadRequest, field, message, http.StatusBadRequest)
}

// UnprocessableError creates a 422 error for inputs that are well formed but cannot be analysed.
func UnprocessableError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusUnprocessableEntity)
}

// UpstreamError creates a 502 error for failing dependencies.
func UpstreamError(message string) *AppError {
	return NewAppError(CodeUpstream, "", message, http.StatusBadGateway)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// TimeoutError creates a 504 error for work that outlived its deadline.
func TimeoutError(message string) *AppError {
	return NewAppError(CodeTimeout, "", message, http.StatusGatewayTimeout)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
