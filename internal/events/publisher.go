package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/askhat/vpn-shop-bot/internal/models"
	"github.com/askhat/vpn-shop-bot/internal/telemetry"
)

// TransitionEvent is emitted on every persisted status change and on
// provisioning outcomes, keyed by transaction id so consumers see per-purchase
// order.
type TransitionEvent struct {
	TransactionID string               `json:"transaction_id"`
	RequesterID   int64                `json:"requester_id"`
	Status        models.PaymentStatus `json:"status"`
	Provisioned   bool                 `json:"provisioned"`
	Timestamp     time.Time            `json:"timestamp"`
}

// Publisher emits purchase transition events. Publishing is best-effort:
// failures are logged, never propagated into the purchase flow.
type Publisher interface {
	Publish(ctx context.Context, event TransitionEvent)
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event TransitionEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		telemetry.Logger.Error("failed to encode transition event",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: raw,
	}); err != nil {
		telemetry.Logger.Warn("failed to publish transition event",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, TransitionEvent) {}

func (NoopPublisher) Close() error { return nil }
