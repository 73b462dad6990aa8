package kafka

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// HeaderTraceID carries the correlation id of the run that produced a message.
const HeaderTraceID = "trace_id"

// ConsumerHook defines lifecycle hooks around message handling.
// Returning an error from BeforeHandle skips the handler for that attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

// HookChain applies hooks in order before handling and in reverse order after.
// A panicking hook is converted to an error and cannot crash the worker.
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain creates a composable hook chain. Nil hooks are ignored.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	filtered := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &HookChain{hooks: filtered}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (out context.Context, err error) {
	out = ctx
	for _, h := range c.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook panic: %v", r)
				}
			}()
			out, err = h.BeforeHandle(out, topic, km)
		}()
		if err != nil {
			return ctx, err
		}
	}
	return out, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		func() {
			defer func() { _ = recover() }()
			c.hooks[i].AfterHandle(ctx, topic, km, err)
		}()
	}
}

type ctxKey string

const (
	ctxStartTime ctxKey = "kafka_hook_start_time"
	ctxTraceID   ctxKey = "kafka_hook_trace_id"
)

// TraceIDFromContext returns the trace id placed by TraceHook, if any.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxTraceID).(string)
	return v
}

// ExtractTraceID reads the trace id header of a message.
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderTraceID && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// TraceHook copies the trace id header into the context and logs the outcome.
type TraceHook struct {
	Log *logger.Logger
}

func (h TraceHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message) (context.Context, error) {
	ctx = context.WithValue(ctx, ctxStartTime, time.Now())
	if id := ExtractTraceID(km); id != "" {
		ctx = context.WithValue(ctx, ctxTraceID, id)
	}
	return ctx, nil
}

func (h TraceHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.Log == nil {
		return
	}
	var elapsed time.Duration
	if t, ok := ctx.Value(ctxStartTime).(time.Time); ok {
		elapsed = time.Since(t)
	}
	fields := []logger.Field{
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.String("trace_id", TraceIDFromContext(ctx)),
		logger.Duration("elapsed", elapsed),
	}
	if err != nil {
		h.Log.Warn("kafka message handling failed", append(fields, logger.Error(err))...)
		return
	}
	h.Log.Debug("kafka message handled", fields...)
}
