package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockForecaster/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRecorder struct {
	mu       sync.Mutex
	failures int
	got      []string
	calls    int
}

func (r *flakyRecorder) Record(_ context.Context, run *models.ForecastRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return errors.New("backend down")
	}
	r.got = append(r.got, run.RunID)
	return nil
}

func (r *flakyRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func validRun(id string) *models.ForecastRun {
	return &models.ForecastRun{RunID: id, Ticker: "AAPL", CreatedAt: time.Now()}
}

func TestRecordPipelineForwards(t *testing.T) {
	rec := &flakyRecorder{}
	p := NewRecordPipeline(rec)

	require.NoError(t, p.Record(context.Background(), validRun("a")))
	assert.Equal(t, []string{"a"}, rec.recorded())
	assert.Equal(t, 0, p.Buffered())
}

func TestRecordPipelineRejectsInvalid(t *testing.T) {
	rec := &flakyRecorder{}
	p := NewRecordPipeline(rec)

	err := p.Record(context.Background(), &models.ForecastRun{Ticker: "AAPL"})
	assert.ErrorIs(t, err, models.ErrInvalidRun)
	assert.Equal(t, 0, rec.calls)
}

func TestRecordPipelineBuffersAndRetries(t *testing.T) {
	rec := &flakyRecorder{failures: 2}
	p := NewRecordPipeline(rec, WithBackoff(time.Millisecond, 4*time.Millisecond))
	var sleeps []time.Duration
	var mu sync.Mutex
	p.sleep = func(d time.Duration, _ <-chan struct{}) bool {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return true
	}

	err := p.Record(context.Background(), validRun("a"))
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.recorded())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{2 * time.Millisecond}, sleeps)
}

func TestRecordPipelineDropsWhenFull(t *testing.T) {
	rec := &flakyRecorder{failures: 10}
	var dropped []string
	p := NewRecordPipeline(rec, WithBufferSize(1), WithDropHook(func(r *models.ForecastRun) {
		dropped = append(dropped, r.RunID)
	}))

	assert.Error(t, p.Record(context.Background(), validRun("a")))
	assert.Error(t, p.Record(context.Background(), validRun("b")))
	assert.Equal(t, 1, p.Buffered())
	assert.Equal(t, []string{"b"}, dropped)
}

func TestRecordPipelineStopIdempotent(t *testing.T) {
	p := NewRecordPipeline(&flakyRecorder{})
	p.Stop()
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
