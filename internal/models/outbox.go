package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Domain event types relayed to the order events topic
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

const AggregateOrder = "order"

// OutboxMessage represents a message to be published from the outbox table
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope stored in the payload column
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// OrderCreatedData is the data of an order.created event
type OrderCreatedData struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	LaundryID   string    `json:"laundry_id"`
	OrderType   OrderType `json:"order_type"`
	TotalAmount string    `json:"total_amount"`
}

// OrderStatusChangedData is the data of an order.status_changed event
type OrderStatusChangedData struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  string      `json:"customer_id"`
	LaundryID   string      `json:"laundry_id"`
	FromStatus  OrderStatus `json:"from_status"`
	ToStatus    OrderStatus `json:"to_status"`
	ChangedBy   string      `json:"changed_by"`
	ActorRole   ActorRole   `json:"actor_role"`
}

// NewOutboxMessage wraps data in an event envelope ready for insertion
func NewOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}, at time.Time) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)

	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(OutboxMessageEvent{
		EventType:   eventType,
		EventID:     NewEventID(at),
		AggregateID: aggregateID,
		OccurredAt:  at,
		Data:        raw,
	})

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates the outbox message announcing a new order
func NewOrderCreatedEvent(order *Order, at time.Time) (*OutboxMessage, error) {
	return NewOutboxMessage(AggregateOrder, order.ID, EventOrderCreated, OrderCreatedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		LaundryID:   order.LaundryID,
		OrderType:   order.OrderType,
		TotalAmount: order.TotalAmount.StringFixed(2),
	}, at)
}

// NewOrderStatusChangedEvent creates the outbox message for one transition
func NewOrderStatusChangedEvent(order *Order, from OrderStatus, actor Actor, at time.Time) (*OutboxMessage, error) {
	return NewOutboxMessage(AggregateOrder, order.ID, EventOrderStatusChanged, OrderStatusChangedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		LaundryID:   order.LaundryID,
		FromStatus:  from,
		ToStatus:    order.Status,
		ChangedBy:   actor.ID,
		ActorRole:   actor.Role,
	}, at)
}

// DecodeEvent parses an outbox payload envelope
func DecodeEvent(payload []byte) (*OutboxMessageEvent, error) {
	var event OutboxMessageEvent

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
