package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := []bar{{Date: "2024-01-02", Close: 185.6}, {Date: "2024-01-03", Close: 184.2}}
	require.NoError(t, mc.Set(ctx, "prices:AAPL", in, time.Minute))

	var out []bar
	require.NoError(t, mc.Get(ctx, "prices:AAPL", &out))
	assert.Equal(t, in, out)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var s string
	assert.True(t, errors.Is(mc.Get(ctx, "missing", &s), ErrCacheMiss))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, _ := mc.Exists(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	now = now.Add(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_TryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "warmup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "warmup", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "warmup"))
	ok, _ = mc.TryLock(ctx, "warmup", time.Minute)
	assert.True(t, ok)
}

func TestRemember(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]bar, error) {
		calls++
		return []bar{{Date: "2024-01-02", Close: 1}}, nil
	}

	v, hit, err := Remember(ctx, mc, "k", time.Minute, load, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, v, 1)

	v, hit, err = Remember(ctx, mc, "k", time.Minute, load, nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1.0, v[0].Close)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = Remember(ctx, mc, "other", time.Minute, func(context.Context) (int, error) { return 0, boom }, nil)
	assert.ErrorIs(t, err, boom)
	ok, _ := mc.Exists(ctx, "other")
	assert.False(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "prices:AAPL:2024-01-01:2024-02-01", GenerateKeyWithParams("prices", "AAPL", "2024-01-01", "2024-02-01"))
	assert.Equal(t, "x", GenerateKeyWithParams("x"))
}
