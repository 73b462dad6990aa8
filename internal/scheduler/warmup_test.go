package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLoader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	start time.Time
	end   time.Time
}

func (l *recordingLoader) Load(_ context.Context, ticker string, start, end time.Time) (*models.PriceTable, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ticker)
	l.start, l.end = start, end
	if l.fail[ticker] {
		return nil, errors.New("upstream down")
	}
	return &models.PriceTable{Ticker: ticker, Rows: make([]models.PriceRow, 3)}, nil
}

func TestRunOnceLoadsEveryTicker(t *testing.T) {
	loader := &recordingLoader{fail: map[string]bool{"TSLA": true}}
	w := NewWarmup(loader, nil, []string{"AAPL", "TSLA", "MSFT"}, time.Date(2014, 1, 1, 15, 0, 0, 0, time.UTC), nil)
	w.today = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	ok := w.RunOnce(context.Background())

	assert.Equal(t, 2, ok)
	assert.Equal(t, []string{"AAPL", "TSLA", "MSFT"}, loader.calls)
	assert.True(t, loader.start.Equal(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, loader.end.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunOnceSkipsLockedTicker(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	held, err := mc.TryLock(ctx, cache.GenerateKeyWithParams(warmupLockPrefix, "AAPL"), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	loader := &recordingLoader{}
	w := NewWarmup(loader, mc, []string{"AAPL", "MSFT"}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	assert.Equal(t, 1, w.RunOnce(ctx))
	assert.Equal(t, []string{"MSFT"}, loader.calls)

	// the lock taken by the warmup itself is released
	again, err := mc.TryLock(ctx, cache.GenerateKeyWithParams(warmupLockPrefix, "MSFT"), time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRegister(t *testing.T) {
	w := NewWarmup(&recordingLoader{}, nil, nil, time.Now(), nil)

	assert.NoError(t, w.Register(""))
	assert.Empty(t, w.cron.Entries())

	assert.NoError(t, w.Register("0 30 6 * * 1-5"))
	assert.Len(t, w.cron.Entries(), 1)

	assert.Error(t, w.Register("not a cron spec"))
}

func TestStartStop(t *testing.T) {
	w := NewWarmup(&recordingLoader{}, nil, []string{"AAPL"}, time.Now(), nil)
	require.NoError(t, w.Register("@every 1h"))
	w.Start()
	w.Stop()
}
