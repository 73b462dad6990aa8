package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockforecaster",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecasting API endpoints",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockforecaster",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors)
	})
}

// Observe records one endpoint call. code is empty on success.
func Observe(endpoint string, start time.Time, code string) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if code != "" {
		APIErrors.WithLabelValues(endpoint, code).Inc()
	}
}
