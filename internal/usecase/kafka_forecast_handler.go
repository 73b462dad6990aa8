package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	pkgkafka "StockForecaster/pkg/kafka"
)

// KafkaForecastHandler consumes forecast.completed events and writes them to a store.
type KafkaForecastHandler struct {
	topic   string
	sink    string
	store   domrepo.ForecastStore
	metrics domrepo.Metrics
}

func NewKafkaForecastHandler(topic, sink string, store domrepo.ForecastStore, metrics domrepo.Metrics) *KafkaForecastHandler {
	if metrics == nil {
		metrics = domrepo.NoopMetrics{}
	}
	return &KafkaForecastHandler{topic: topic, sink: sink, store: store, metrics: metrics}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// Handle stores one event. Events of other types are skipped; malformed ones
// are returned as errors so the consumer dead-letters them.
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ForecastEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordRecord(h.sink, err)
		return fmt.Errorf("decode forecast event: %w", err)
	}
	if ev.Type != models.EventForecastCompleted {
		return nil
	}
	if err := ev.Run.Validate(); err != nil {
		h.metrics.RecordRecord(h.sink, err)
		return err
	}

	err := h.store.Save(ctx, ev.Run)
	h.metrics.RecordRecord(h.sink, err)
	if err != nil {
		return fmt.Errorf("store run %s: %w", ev.Run.RunID, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)
