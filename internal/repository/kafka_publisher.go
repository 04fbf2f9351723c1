package repository

import (
	"context"
	"fmt"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	pkgkafka "PaperPulse/pkg/kafka"
)

// KafkaPublisher implements EventPublisher on a kafka producer. Price
// updates and trade lifecycle events share one topic, keyed by symbol so a
// partition preserves per-symbol order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPrice(ctx context.Context, ev models.PriceUpdateEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish price update: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, ev models.TradeEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

// NopPublisher is used when kafka is disabled in config.
type NopPublisher struct{}

func (NopPublisher) PublishPrice(context.Context, models.PriceUpdateEvent) error { return nil }
func (NopPublisher) PublishTrade(context.Context, models.TradeEvent) error       { return nil }
func (NopPublisher) Close() error                                                { return nil }

var _ domrepo.EventPublisher = NopPublisher{}
