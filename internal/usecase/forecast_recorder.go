package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/pkg/config"
)

// ErrNoStore is returned when listing runs without a configured store.
var ErrNoStore = errors.New("no forecast store configured")

// RunRecorder accepts completed runs for auditing.
type RunRecorder interface {
	Record(ctx context.Context, run *models.ForecastRun) error
}

// ForecastRecorder routes completed runs to the configured backend.
type ForecastRecorder struct {
	backend string
	store   domrepo.ForecastStore
	pub     domrepo.RunPublisher
	metrics domrepo.Metrics
}

// NewForecastRecorder creates a recorder. store is used for the sqlite and
// clickhouse backends and for listing; pub for the kafka backend.
func NewForecastRecorder(backend string, store domrepo.ForecastStore, pub domrepo.RunPublisher, metrics domrepo.Metrics) *ForecastRecorder {
	if metrics == nil {
		metrics = domrepo.NoopMetrics{}
	}
	return &ForecastRecorder{backend: backend, store: store, pub: pub, metrics: metrics}
}

func (r *ForecastRecorder) Backend() string { return r.backend }

// Record sends a run to the backend.
func (r *ForecastRecorder) Record(ctx context.Context, run *models.ForecastRun) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}

	var err error
	switch r.backend {
	case config.BackendNone, "":
		return nil
	case config.BackendKafka:
		if r.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
			break
		}
		err = r.pub.Publish(ctx, run)
	case config.BackendSQLite, config.BackendClickHouse:
		if r.store == nil {
			err = fmt.Errorf("%s backend without store", r.backend)
			break
		}
		err = r.store.Save(ctx, run)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	r.metrics.RecordRecord(r.backend, err)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent lists recorded runs, newest first.
func (r *ForecastRecorder) Recent(ctx context.Context, ticker string, limit int) ([]*models.ForecastRun, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.store.Recent(ctx, ticker, limit)
}

// Health reports the store health; a recorder without a store is healthy.
func (r *ForecastRecorder) Health(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Health(ctx)
}

// Close closes underlying resources if available.
func (r *ForecastRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}
