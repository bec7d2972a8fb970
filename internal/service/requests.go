package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/pricing"
)

// CreateOrderRequest is a customer checkout
type CreateOrderRequest struct {
	LaundryID           string                `json:"laundry_id"`
	OrderType           models.OrderType      `json:"order_type"`
	PickupType          models.PickupType     `json:"pickup_type"`
	PaymentMethod       models.PaymentMethod  `json:"payment_method"`
	Items               []pricing.LineRequest `json:"items"`
	PickupAddress       string                `json:"pickup_address"`
	DeliveryAddress     string                `json:"delivery_address"`
	PickupDate          *time.Time            `json:"pickup_date,omitempty"`
	PickupTimeSlot      string                `json:"pickup_time_slot,omitempty"`
	SpecialInstructions string                `json:"special_instructions,omitempty"`
	PromoCode           string                `json:"promo_code,omitempty"`
}

// QuoteResult is a priced checkout that has not been persisted
type QuoteResult struct {
	pricing.Quote
	PromoCode string `json:"promo_code,omitempty"`
}

// ValidatePromoRequest previews a promo code against an amount
type ValidatePromoRequest struct {
	Code      string          `json:"code"`
	Amount    decimal.Decimal `json:"amount"`
	LaundryID string          `json:"laundry_id"`
}

// ListOrdersRequest pages through the orders visible to the caller
type ListOrdersRequest struct {
	Status models.OrderStatus
	Limit  int
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (r *ListOrdersRequest) normalize() {
	if r.Limit <= 0 {
		r.Limit = defaultListLimit
	}
	if r.Limit > maxListLimit {
		r.Limit = maxListLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
}
