package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/segmentio/kafka-go"

	"github.com/civicpay/civicpay/app/models"
)

// MessageWriter is the part of kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds the payment event writer. Messages of one order
// hash to the same partition, so consumers see them in order.
func NewKafkaWriter(cfg *Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
}

// PaymentEventPublisher publishes payment events to Kafka
type PaymentEventPublisher struct {
	writer MessageWriter
}

// NewPaymentEventPublisher returns a sink. A nil writer turns publishing off.
func NewPaymentEventPublisher(writer MessageWriter) *PaymentEventPublisher {
	return &PaymentEventPublisher{writer: writer}
}

func (p *PaymentEventPublisher) Deliver(ctx context.Context, effect *models.OutboxEffect) error {
	if p.writer == nil {
		return nil
	}
	var event models.PaymentEventPayload
	if err := decodePayload(effect, &event); err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: effect.Payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			// Consumers dedup redelivered messages on this id
			{Key: "effect-id", Value: []byte(effect.EffectID)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	log.Debugf("[Outbox] Published %s for order %s", event.Type, event.OrderID)
	return nil
}
