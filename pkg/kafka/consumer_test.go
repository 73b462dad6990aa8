package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	topic    string
	failures int
	calls    int
	traceIDs []string
	payloads [][]byte
}

func (h *fakeHandler) Topic() string { return h.topic }

func (h *fakeHandler) Handle(ctx context.Context, data []byte) error {
	h.calls++
	h.traceIDs = append(h.traceIDs, TraceIDFromContext(ctx))
	h.payloads = append(h.payloads, data)
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	c.sleep = func(time.Duration, <-chan struct{}) bool { return true }
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)
}

func TestConsumer_RetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &fakeHandler{topic: "forecast.completed", failures: 2}
	c.RegisterHandler(h)
	c.WithHook(NewHookChain(TraceHook{}))

	msg := kafka.Message{
		Topic:   "forecast.completed",
		Value:   []byte(`{"run_id":"r1"}`),
		Headers: []kafka.Header{{Key: HeaderTraceID, Value: []byte("r1")}},
	}
	attempts, err := c.handleWithRetry(h, msg)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"r1", "r1", "r1"}, h.traceIDs)
}

func TestConsumer_GivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &fakeHandler{topic: "t", failures: 10}
	c.RegisterHandler(h)

	attempts, err := c.handleWithRetry(h, kafka.Message{Topic: "t"})
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, h.calls)

	// process without reader or DLQ must not panic
	c.process(kafka.Message{Topic: "t"})
}

func TestConsumer_HandlerPanicBecomesError(t *testing.T) {
	c := newTestConsumer(t, 0)
	h := panicHandler{}
	err := c.handleOnce(h, kafka.Message{Topic: "p"})
	assert.ErrorContains(t, err, "handler panic")
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "p" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestHookChain_StopsOnError(t *testing.T) {
	var after []string
	rec := func(name string, fail bool) ConsumerHook {
		return testHook{name: name, fail: fail, after: &after}
	}
	chain := NewHookChain(rec("a", false), nil, rec("b", true))
	_, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{})
	assert.Error(t, err)

	chain = NewHookChain(rec("a", false), rec("b", false))
	ctx, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{})
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", kafka.Message{}, nil)
	assert.Equal(t, []string{"b", "a"}, after)
}

type testHook struct {
	name  string
	fail  bool
	after *[]string
}

func (h testHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	if h.fail {
		return ctx, errors.New(h.name)
	}
	return ctx, nil
}

func (h testHook) AfterHandle(context.Context, string, kafka.Message, error) {
	*h.after = append(*h.after, h.name)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, _ = encodeValue("raw")
	assert.Equal(t, "raw", string(b))
}
