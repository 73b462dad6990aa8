package repository

import (
	"context"
	"time"

	"StockForecaster/internal/domain/models"
)

// MarketData retrieves daily bars for a ticker over [start, end).
type MarketData interface {
	FetchDaily(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceBar, error)
}

// ForecastStore persists forecast runs and lists recent ones.
type ForecastStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, run *models.ForecastRun) error
	Recent(ctx context.Context, ticker string, limit int) ([]*models.ForecastRun, error)
	Health(ctx context.Context) error
	Close() error
}

// RunPublisher emits completed runs to a message broker.
type RunPublisher interface {
	Publish(ctx context.Context, run *models.ForecastRun) error
	Close() error
}

// Metrics records pipeline observations.
type Metrics interface {
	RecordStage(stage string, d time.Duration, err error)
	RecordForecast(ticker, mode string)
	RecordCacheLookup(hit bool)
	RecordRecord(backend string, err error)
	RecordLastValue(ticker string, v float64)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordStage(string, time.Duration, error) {}
func (NoopMetrics) RecordForecast(string, string)            {}
func (NoopMetrics) RecordCacheLookup(bool)                   {}
func (NoopMetrics) RecordRecord(string, error)               {}
func (NoopMetrics) RecordLastValue(string, float64)          {}
