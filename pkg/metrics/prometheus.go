package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the forecasting metrics contract using Prometheus.
type Recorder struct {
	stageLatency *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec
	forecasts    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	records      *prometheus.CounterVec
	lastClose    *prometheus.GaugeVec
}

// New registers the collectors on reg; a nil reg means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockforecaster_stage_duration_seconds",
				Help:    "Duration of forecasting pipeline stages in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		stageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockforecaster_stage_errors_total",
				Help: "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockforecaster_forecasts_total",
				Help: "Completed forecasts by ticker and model selection mode",
			},
			[]string{"ticker", "mode"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockforecaster_price_cache_lookups_total",
				Help: "Price cache lookups by result",
			},
			[]string{"result"},
		),
		records: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockforecaster_records_total",
				Help: "Forecast runs handed to a recording backend",
			},
			[]string{"backend", "result"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockforecaster_last_close",
				Help: "Last observed value of the selected column per ticker",
			},
			[]string{"ticker"},
		),
	}
}

// RecordStage records a pipeline stage duration and whether it failed.
func (r *Recorder) RecordStage(stage string, d time.Duration, err error) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		r.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (r *Recorder) RecordForecast(ticker, mode string) {
	r.forecasts.WithLabelValues(ticker, mode).Inc()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordRecord(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.records.WithLabelValues(backend, result).Inc()
}

func (r *Recorder) RecordLastValue(ticker string, v float64) {
	r.lastClose.WithLabelValues(ticker).Set(v)
}
