package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/laundry-order-api/internal/metrics"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// OrderEventsHandler consumes the orders topic and keeps the lifecycle metrics
type OrderEventsHandler struct {
	logger logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		logger: logger,
	}
}

// HandleMessage decodes one order event. Undecodable messages are logged and
// skipped so a poison record cannot stall the partition.
func (h *OrderEventsHandler) HandleMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	event, err := models.DecodeEvent(msg.Value)

	if err != nil {
		h.logger.Error("Failed to decode order event",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset)
		return nil
	}

	switch event.EventType {
	case models.EventOrderCreated:
		return h.handleOrderCreated(event)
	case models.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(event)
	default:
		h.logger.Warn("Unknown order event type", "eventType", event.EventType, "eventID", event.EventID)
		return nil
	}
}

func (h *OrderEventsHandler) handleOrderCreated(event *models.OutboxMessageEvent) error {
	var data models.OrderCreatedData

	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("invalid %s data: %w", event.EventType, err)
	}

	metrics.RecordOrderCreated(string(data.OrderType))
	metrics.RecordStatusTransition("", string(models.StatusPending))

	h.logger.Info("Order created",
		"orderID", data.OrderID,
		"orderNumber", data.OrderNumber,
		"laundryID", data.LaundryID,
		"eventID", event.EventID)

	return nil
}

func (h *OrderEventsHandler) handleOrderStatusChanged(event *models.OutboxMessageEvent) error {
	var data models.OrderStatusChangedData

	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("invalid %s data: %w", event.EventType, err)
	}

	metrics.RecordStatusTransition(string(data.FromStatus), string(data.ToStatus))

	h.logger.Info("Order status changed",
		"orderID", data.OrderID,
		"fromStatus", data.FromStatus,
		"toStatus", data.ToStatus,
		"actorRole", data.ActorRole)

	return nil
}
