package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/kafka"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// EventPublisher is satisfied by *kafka.Producer
type EventPublisher interface {
	Publish(ctx context.Context, message kafka.Message) error
}

// KafkaHandler publishes order events to the orders topic
type KafkaHandler struct {
	publisher EventPublisher
	topic     string
	logger    logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(publisher EventPublisher, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// HandleMessage publishes the payload keyed by order id, so every event of
// one order lands on the same partition in commit order.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	err := h.publisher.Publish(ctx, kafka.Message{
		Topic: h.topic,
		Key:   message.AggregateID,
		Value: message.Payload,
		Headers: map[string]string{
			"event_type": message.EventType,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	h.logger.Debug("Published order event",
		"topic", h.topic,
		"messageID", message.ID,
		"orderID", message.AggregateID,
		"eventType", message.EventType)

	return nil
}
