package repository

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"StockForecaster/internal/domain/models"
	pkgkafka "StockForecaster/pkg/kafka"
	pkgsqlite "StockForecaster/pkg/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(id, ticker string, created time.Time) *models.ForecastRun {
	return &models.ForecastRun{
		RunID:        id,
		Ticker:       ticker,
		Column:       models.ColClose,
		Mode:         models.ModeManual,
		Order:        models.MirroredOrder(2, 1, 2, 12),
		Spec:         "SARIMA(2,1,2)(2,1,2)[12]",
		Start:        "2020-01-01",
		End:          "2024-01-01",
		Observations: 1000,
		Horizon:      2,
		AIC:          models.Float(math.Inf(1)),
		Stationary:   true,
		PValue:       0.01,
		DurationMS:   1234,
		CreatedAt:    created,
		Points: []models.ForecastRow{
			{Date: "2024-01-02", Predicted: 1, Lower: 0.5, Upper: 1.5},
			{Date: "2024-01-03", Predicted: 2, Lower: models.Float(math.NaN()), Upper: 2.5},
		},
	}
}

func newSQLiteStore(t *testing.T) *SQLiteForecastStore {
	t.Helper()
	c, err := pkgsqlite.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	s := NewSQLiteForecastStore(c)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestSQLiteStoreSaveAndRecent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleRun("a", "AAPL", base)))
	require.NoError(t, s.Save(ctx, sampleRun("b", "MSFT", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, sampleRun("c", "AAPL", base.Add(2*time.Minute))))

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].RunID)
	assert.Equal(t, "a", all[2].RunID)

	aapl, err := s.Recent(ctx, "aapl", 1)
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	got := aapl[0]
	assert.Equal(t, "c", got.RunID)
	assert.Equal(t, models.MirroredOrder(2, 1, 2, 12), got.Order)
	assert.True(t, got.Stationary)
	assert.Equal(t, models.Float(0.01), got.PValue)
	assert.True(t, base.Add(2*time.Minute).Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
	assert.Equal(t, int64(1234), got.DurationMS)

	pts, err := s.Points(ctx, "a")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "2024-01-03", pts[1].Date)
	assert.False(t, pts[1].Lower.Valid())
	assert.Equal(t, models.Float(2.5), pts[1].Upper)
}

func TestSQLiteStoreReplacesRun(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	run := sampleRun("a", "AAPL", time.Now().UTC())
	require.NoError(t, s.Save(ctx, run))

	run.Horizon = 1
	run.Points = run.Points[:1]
	require.NoError(t, s.Save(ctx, run))

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	pts, err := s.Points(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, pts, 1)
	assert.NoError(t, s.Health(ctx))
}

func TestSQLiteStoreRejectsInvalidRun(t *testing.T) {
	s := newSQLiteStore(t)
	err := s.Save(context.Background(), &models.ForecastRun{RunID: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidRun)
}

type capturedMessage struct {
	topic   string
	key     []byte
	value   interface{}
	headers []pkgkafka.Header
}

type fakeProducer struct {
	msgs   []capturedMessage
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error {
	p.msgs = append(p.msgs, capturedMessage{topic, key, value, headers})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaPublisher(prod, "forecasts")
	run := sampleRun("run-9", "aapl", time.Now().UTC())

	require.NoError(t, pub.Publish(context.Background(), run))
	require.Len(t, prod.msgs, 1)
	msg := prod.msgs[0]
	assert.Equal(t, "forecasts", msg.topic)
	assert.Equal(t, []byte("AAPL"), msg.key)
	assert.Equal(t, []pkgkafka.Header{{Key: pkgkafka.HeaderTraceID, Value: "run-9"}}, msg.headers)

	b, err := json.Marshal(msg.value)
	require.NoError(t, err)
	var ev models.ForecastEvent
	require.NoError(t, json.Unmarshal(b, &ev))
	assert.Equal(t, models.EventForecastCompleted, ev.Type)
	assert.Equal(t, "run-9", ev.Run.RunID)
	assert.False(t, ev.Run.AIC.Valid())

	assert.Error(t, pub.Publish(context.Background(), &models.ForecastRun{}))
	require.NoError(t, pub.Close())
	assert.True(t, prod.closed)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "(?, ?, ?)", placeholders(3))
	assert.Equal(t, 20, limitOrDefault(0))
	assert.Equal(t, maxRecentLimit, limitOrDefault(1000))
	assert.Nil(t, nullable(models.Float(math.NaN())))
	assert.Equal(t, 1.5, nullable(1.5))
}
