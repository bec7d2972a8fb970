package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is the single payment record created with each order
type Payment struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    PaymentMethod   `db:"method" json:"method"`
	Status    PaymentStatus   `db:"status" json:"status"`
	PaidAt    *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
