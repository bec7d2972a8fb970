package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// LoggingHandler acknowledges messages by logging them. It stands in for a
// broker that is not configured.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage logs the envelope. A payload that is not an envelope is an error.
func (h *LoggingHandler) HandleMessage(_ context.Context, message *models.OutboxMessage) error {
	event, err := models.DecodeEvent(message.Payload)

	if err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Handling outbox message",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}
