package repository

import (
	"context"
	"strings"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	pkgkafka "StockForecaster/pkg/kafka"
)

// RunProducer is the part of the Kafka producer the publisher needs.
type RunProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaPublisher emits forecast.completed events keyed by ticker, so the runs
// of one ticker stay ordered on one partition.
type KafkaPublisher struct {
	producer RunProducer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer RunProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.ForecastRun) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return p.producer.Publish(ctx, p.topic, []byte(strings.ToUpper(r.Ticker)),
		models.ForecastEvent{Type: models.EventForecastCompleted, Run: r},
		pkgkafka.Header{Key: pkgkafka.HeaderTraceID, Value: r.RunID},
	)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.RunPublisher = (*KafkaPublisher)(nil)
