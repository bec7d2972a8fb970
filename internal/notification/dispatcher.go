// Package notification tells the other party of an order that something happened to it.
// Delivery is best effort and always runs after the order change has committed.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vaidashi/laundry-order-api/internal/lifecycle"
	"github.com/vaidashi/laundry-order-api/internal/models"
)

// Notification event types, used as broker routing keys
const (
	EventLaundryNewOrder     = "notification.laundry.new_order"
	EventCustomerOrderStatus = "notification.customer.order_status"
	EventLaundryCancellation = "notification.laundry.cancellation"
	EventLaundryOrderStatus  = "notification.laundry.order_status"
)

const AggregateNotification = "notification"

// Dispatcher sends order notifications
type Dispatcher interface {
	NotifyLaundryNewOrder(ctx context.Context, order *models.Order) error
	NotifyCustomerOrderStatus(ctx context.Context, order *models.Order) error
	NotifyLaundryCancellation(ctx context.Context, order *models.Order) error
	NotifyLaundryOrderStatus(ctx context.Context, order *models.Order) error
}

// Message is the body handed to the push transport
type Message struct {
	RecipientID   string             `json:"recipient_id"`
	RecipientRole models.ActorRole   `json:"recipient_role"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	OrderID       string             `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	Status        models.OrderStatus `json:"status"`
}

// OutboxWriter persists a message for the relay
type OutboxWriter interface {
	Create(ctx context.Context, message *models.OutboxMessage) error
}

// OutboxDispatcher queues each notification as an outbox row
type OutboxDispatcher struct {
	outbox OutboxWriter
	now    func() time.Time
}

func NewOutboxDispatcher(outbox OutboxWriter, now func() time.Time) *OutboxDispatcher {
	if now == nil {
		now = models.GetCurrentTime
	}
	return &OutboxDispatcher{outbox: outbox, now: now}
}

func (d *OutboxDispatcher) NotifyLaundryNewOrder(ctx context.Context, order *models.Order) error {
	return d.send(ctx, EventLaundryNewOrder, Message{
		RecipientID:   order.LaundryID,
		RecipientRole: models.RoleLaundry,
		Title:         "New Order Received",
		Body:          fmt.Sprintf("Order %s for %s is waiting for your confirmation", order.OrderNumber, order.TotalAmount.StringFixed(2)),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
	})
}

func (d *OutboxDispatcher) NotifyCustomerOrderStatus(ctx context.Context, order *models.Order) error {
	tmpl := lifecycle.TimelineFor(order.Status)

	return d.send(ctx, EventCustomerOrderStatus, Message{
		RecipientID:   order.CustomerID,
		RecipientRole: models.RoleCustomer,
		Title:         tmpl.Title,
		Body:          fmt.Sprintf("Order %s: %s", order.OrderNumber, tmpl.Description),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
	})
}

func (d *OutboxDispatcher) NotifyLaundryCancellation(ctx context.Context, order *models.Order) error {
	body := fmt.Sprintf("Order %s was cancelled by the customer", order.OrderNumber)
	if order.CancellationReason != nil && *order.CancellationReason != "" {
		body += ": " + *order.CancellationReason
	}

	return d.send(ctx, EventLaundryCancellation, Message{
		RecipientID:   order.LaundryID,
		RecipientRole: models.RoleLaundry,
		Title:         "Order Cancelled",
		Body:          body,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
	})
}

func (d *OutboxDispatcher) NotifyLaundryOrderStatus(ctx context.Context, order *models.Order) error {
	return d.send(ctx, EventLaundryOrderStatus, Message{
		RecipientID:   order.LaundryID,
		RecipientRole: models.RoleLaundry,
		Title:         "Delivery Confirmed",
		Body:          fmt.Sprintf("The customer confirmed delivery of order %s", order.OrderNumber),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
	})
}

func (d *OutboxDispatcher) send(ctx context.Context, eventType string, msg Message) error {
	outboxMsg, err := models.NewOutboxMessage(AggregateNotification, msg.OrderID, eventType, msg, d.now())
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	if err := d.outbox.Create(ctx, outboxMsg); err != nil {
		return fmt.Errorf("queue %s: %w", eventType, err)
	}

	return nil
}

// Decode extracts the notification from an outbox payload
func Decode(payload []byte) (*Message, error) {
	event, err := models.DecodeEvent(payload)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(event.Data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
