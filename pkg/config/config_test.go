package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 3*time.Minute, c.Server.WriteTimeout)
	assert.Equal(t, []string{"AAPL", "MSFT", "AMZN", "TSLA", "GOOG", "META", "TSM", "NVDA", "NFLX", "AMD"}, c.Market.Tickers)
	assert.Equal(t, "2014-01-01", c.Market.DefaultStart)
	assert.Equal(t, 0.05, c.Analysis.SignificanceLevel)
	assert.Equal(t, 30, c.Analysis.DecomposePeriod)
	assert.Equal(t, 12, c.Analysis.SeasonalPeriod)
	assert.Equal(t, BackendNone, c.Recorder.Backend)
	assert.Equal(t, BackendNone, c.StoreBackend())
}

func TestParseKeepsExplicitValues(t *testing.T) {
	raw := `
environment: prod
server:
  port: 9090
market:
  tickers: [AAPL, NVDA]
recorder:
  backend: sqlite
`
	c, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"AAPL", "NVDA"}, c.Market.Tickers)
	assert.Equal(t, BackendSQLite, c.StoreBackend())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	_, err := Parse([]byte("recorder:\n  backend: postgres\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorder.backend")
}

func TestValidateKafkaNeedsBrokers(t *testing.T) {
	_, err := Parse([]byte("recorder:\n  backend: kafka\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"HTTP_PORT":        "7000",
		"TICKERS":          "AMD, TSM",
		"REDIS_ADDR":       "cache.local:6380",
		"RECORDER_BACKEND": "kafka",
		"KAFKA_BROKERS":    "k1:9092,k2:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, 7000, c.Server.Port)
	assert.Equal(t, []string{"AMD", "TSM"}, c.Market.Tickers)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "cache.local", c.Cache.Redis.Host)
	assert.Equal(t, 6380, c.Cache.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())
	assert.Equal(t, BackendNone, c.StoreBackend())
}

func TestConsumerSinkMustMatchBackend(t *testing.T) {
	raw := `
recorder:
  backend: sqlite
  sink: clickhouse
kafka:
  brokers: [k1:9092]
  consumer:
    enabled: true
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorder.sink")

	c, err := Parse([]byte("recorder:\n  backend: kafka\n  sink: clickhouse\nkafka:\n  brokers: [k1:9092]\n  consumer:\n    enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendClickHouse, c.StoreBackend())
}
