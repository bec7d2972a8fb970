package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a stage of the order lifecycle
type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusAccepted        OrderStatus = "ACCEPTED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusPickupScheduled OrderStatus = "PICKUP_SCHEDULED"
	StatusPickedUp        OrderStatus = "PICKED_UP"
	StatusProcessing      OrderStatus = "PROCESSING"
	StatusReady           OrderStatus = "READY"
	StatusOutForDelivery  OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusCompleted       OrderStatus = "COMPLETED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusPickupScheduled,
	StatusPickedUp,
	StatusProcessing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
}

// ParseOrderStatus accepts only known statuses
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range OrderStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

type OrderType string

const (
	OrderTypeStandard OrderType = "STANDARD"
	OrderTypeExpress  OrderType = "EXPRESS"
)

type PickupType string

const (
	PickupTypeRider       PickupType = "RIDER_PICKUP"
	PickupTypeSelfDropOff PickupType = "SELF_DROP_OFF"
)

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodWallet         PaymentMethod = "WALLET"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Order represents a laundry order
type Order struct {
	ID                  string          `db:"id" json:"id"`
	OrderNumber         string          `db:"order_number" json:"order_number"`
	CustomerID          string          `db:"customer_id" json:"customer_id"`
	LaundryID           string          `db:"laundry_id" json:"laundry_id"`
	OrderType           OrderType       `db:"order_type" json:"order_type"`
	PickupType          PickupType      `db:"pickup_type" json:"pickup_type"`
	Status              OrderStatus     `db:"status" json:"status"`
	PaymentStatus       PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentMethod       PaymentMethod   `db:"payment_method" json:"payment_method"`
	Subtotal            decimal.Decimal `db:"subtotal" json:"subtotal"`
	DeliveryFee         decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	ExpressFee          decimal.Decimal `db:"express_fee" json:"express_fee"`
	Discount            decimal.Decimal `db:"discount" json:"discount"`
	TotalAmount         decimal.Decimal `db:"total_amount" json:"total_amount"`
	PromoCodeID         *string         `db:"promo_code_id" json:"promo_code_id,omitempty"`
	PromoCode           *string         `db:"promo_code" json:"promo_code,omitempty"`
	PickupAddress       string          `db:"pickup_address" json:"pickup_address"`
	DeliveryAddress     string          `db:"delivery_address" json:"delivery_address"`
	PickupDate          *time.Time      `db:"pickup_date" json:"pickup_date,omitempty"`
	PickupTimeSlot      string          `db:"pickup_time_slot" json:"pickup_time_slot"`
	ExpectedDeliveryAt  time.Time       `db:"expected_delivery_at" json:"expected_delivery_at"`
	SpecialInstructions string          `db:"special_instructions" json:"special_instructions,omitempty"`
	AcceptedAt          *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	PickupScheduledAt   *time.Time      `db:"pickup_scheduled_at" json:"pickup_scheduled_at,omitempty"`
	PickedUpAt          *time.Time      `db:"picked_up_at" json:"picked_up_at,omitempty"`
	ProcessingAt        *time.Time      `db:"processing_at" json:"processing_at,omitempty"`
	ReadyAt             *time.Time      `db:"ready_at" json:"ready_at,omitempty"`
	OutForDeliveryAt    *time.Time      `db:"out_for_delivery_at" json:"out_for_delivery_at,omitempty"`
	DeliveredAt         *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt         *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt         *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason  *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy         *ActorRole      `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`

	Items   []*OrderItem `db:"-" json:"items,omitempty"`
	Payment *Payment     `db:"-" json:"payment,omitempty"`
}

// ComputeTotal returns subtotal + delivery fee + express fee - discount, floored at zero.
// The orders table derives total_amount with the same expression.
func ComputeTotal(subtotal, deliveryFee, expressFee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(deliveryFee).Add(expressFee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// RecalculateTotal refreshes TotalAmount from the components
func (o *Order) RecalculateTotal() {
	o.TotalAmount = ComputeTotal(o.Subtotal, o.DeliveryFee, o.ExpressFee, o.Discount)
}

// MilestoneAt returns the timestamp field owned by status, or nil for statuses without one
func (o *Order) MilestoneAt(status OrderStatus) **time.Time {
	switch status {
	case StatusAccepted:
		return &o.AcceptedAt
	case StatusPickupScheduled:
		return &o.PickupScheduledAt
	case StatusPickedUp:
		return &o.PickedUpAt
	case StatusProcessing:
		return &o.ProcessingAt
	case StatusReady:
		return &o.ReadyAt
	case StatusOutForDelivery:
		return &o.OutForDeliveryAt
	case StatusDelivered:
		return &o.DeliveredAt
	case StatusCompleted:
		return &o.CompletedAt
	case StatusRejected, StatusCancelled:
		return &o.CancelledAt
	default:
		return nil
	}
}

// PriceUnit tells whether a price applies per piece or per kilogram
type PriceUnit string

const (
	PriceUnitPiece PriceUnit = "PER_PIECE"
	PriceUnitKg    PriceUnit = "PER_KG"
)

// OrderItem is one priced line of an order. Rows are never updated after insert.
type OrderItem struct {
	ID                string              `db:"id" json:"id"`
	OrderID           string              `db:"order_id" json:"order_id"`
	ServiceCategoryID string              `db:"service_category_id" json:"service_category_id"`
	ClothingItemID    string              `db:"clothing_item_id" json:"clothing_item_id"`
	PriceUnit         PriceUnit           `db:"price_unit" json:"price_unit"`
	Quantity          int                 `db:"quantity" json:"quantity"`
	WeightKg          decimal.NullDecimal `db:"weight_kg" json:"weight_kg"`
	UnitPrice         decimal.Decimal     `db:"unit_price" json:"unit_price"`
	TotalPrice        decimal.Decimal     `db:"total_price" json:"total_price"`
	Notes             string              `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}
