package models

import "time"

// TimelineEntry is a customer-facing milestone of an order
type TimelineEntry struct {
	ID          string    `db:"id" json:"id"`
	OrderID     string    `db:"order_id" json:"order_id"`
	Event       string    `db:"event" json:"event"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StatusHistoryEntry is the audit record of one status change
type StatusHistoryEntry struct {
	ID         string       `db:"id" json:"id"`
	OrderID    string       `db:"order_id" json:"order_id"`
	FromStatus *OrderStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   OrderStatus  `db:"to_status" json:"to_status"`
	ChangedBy  string       `db:"changed_by" json:"changed_by"`
	ActorRole  ActorRole    `db:"actor_role" json:"actor_role"`
	Notes      string       `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
