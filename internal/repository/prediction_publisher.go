package repository

import (
	"context"

	"PricePortal/internal/domain/models"
	domrepo "PricePortal/internal/domain/repository"
	pkgkafka "PricePortal/pkg/kafka"
)

// KafkaPredictionPublisher writes prediction events keyed by ticker.
type KafkaPredictionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPredictionPublisher(producer *pkgkafka.Producer, topic string) domrepo.PredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) Publish(ctx context.Context, e *models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Ticker), e)
}

func (p *KafkaPredictionPublisher) Close() error {
	return p.producer.Close()
}

// NoopPredictionPublisher drops events; used when Kafka is disabled.
type NoopPredictionPublisher struct{}

func (NoopPredictionPublisher) Publish(context.Context, *models.PredictionEvent) error { return nil }

func (NoopPredictionPublisher) Close() error { return nil }
