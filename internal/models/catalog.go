package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LaundryStatus string

const (
	LaundryPendingApproval LaundryStatus = "PENDING_APPROVAL"
	LaundryActive          LaundryStatus = "ACTIVE"
	LaundrySuspended       LaundryStatus = "SUSPENDED"
	LaundryClosed          LaundryStatus = "CLOSED"
)

// Laundry is the read model of a laundry business
type Laundry struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	Status             LaundryStatus   `db:"status" json:"status"`
	FreePickupDelivery bool            `db:"free_pickup_delivery" json:"free_pickup_delivery"`
	ExpressMultiplier  decimal.Decimal `db:"express_multiplier" json:"express_multiplier"`
	CompletedOrders    int             `db:"completed_orders" json:"completed_orders"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// AcceptsOrders reports whether checkout may target the laundry
func (l *Laundry) AcceptsOrders() bool {
	return l.Status == LaundryActive
}

// PricingEntry is the price a laundry charges for a clothing item under a service category
type PricingEntry struct {
	LaundryID         string              `db:"laundry_id" json:"laundry_id"`
	ServiceCategoryID string              `db:"service_category_id" json:"service_category_id"`
	ClothingItemID    string              `db:"clothing_item_id" json:"clothing_item_id"`
	Price             decimal.Decimal     `db:"price" json:"price"`
	ExpressPrice      decimal.NullDecimal `db:"express_price" json:"express_price"`
	PriceUnit         PriceUnit           `db:"price_unit" json:"price_unit"`
	IsActive          bool                `db:"is_active" json:"is_active"`
}
