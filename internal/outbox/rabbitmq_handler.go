package outbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// NotificationPublisher is satisfied by *rabbitmq.Publisher
type NotificationPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// RabbitMQHandler publishes notification messages with the event type as routing key
type RabbitMQHandler struct {
	publisher NotificationPublisher
	breaker   *circuitbreaker.CircuitBreaker
	logger    logger.Logger
}

// NewRabbitMQHandler creates a RabbitMQHandler. A nil breaker publishes unguarded.
func NewRabbitMQHandler(publisher NotificationPublisher, breaker *circuitbreaker.CircuitBreaker, logger logger.Logger) *RabbitMQHandler {
	return &RabbitMQHandler{
		publisher: publisher,
		breaker:   breaker,
		logger:    logger,
	}
}

// HandleMessage publishes the envelope. While the breaker is open the message
// stays in the outbox and is retried on a later poll.
func (h *RabbitMQHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	messageID := strconv.FormatInt(message.ID, 10)
	if event, err := models.DecodeEvent(message.Payload); err == nil && event.EventID != "" {
		messageID = event.EventID
	}

	publish := func() error {
		return h.publisher.Publish(ctx, message.EventType, messageID, message.Payload)
	}

	var err error
	if h.breaker != nil {
		err = h.breaker.Execute(publish)
	} else {
		err = publish()
	}

	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	h.logger.Debug("Published notification",
		"messageID", messageID,
		"orderID", message.AggregateID,
		"routingKey", message.EventType)

	return nil
}
