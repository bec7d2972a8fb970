package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// PromoCode is a discount code administered outside this service
type PromoCode struct {
	ID                   string              `db:"id" json:"id"`
	Code                 string              `db:"code" json:"code"`
	DiscountType         DiscountType        `db:"discount_type" json:"discount_type"`
	DiscountValue        decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MaxDiscount          decimal.NullDecimal `db:"max_discount" json:"max_discount"`
	MinOrderAmount       decimal.Decimal     `db:"min_order_amount" json:"min_order_amount"`
	ValidFrom            time.Time           `db:"valid_from" json:"valid_from"`
	ValidUntil           time.Time           `db:"valid_until" json:"valid_until"`
	UsageLimit           *int                `db:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount            int                 `db:"used_count" json:"used_count"`
	FirstOrderOnly       bool                `db:"first_order_only" json:"first_order_only"`
	IsActive             bool                `db:"is_active" json:"is_active"`
	ApplicableLaundryIDs pq.StringArray      `db:"applicable_laundry_ids" json:"applicable_laundry_ids"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
}

// AppliesToLaundry is true when the code is unrestricted or lists laundryID
func (p *PromoCode) AppliesToLaundry(laundryID string) bool {
	if len(p.ApplicableLaundryIDs) == 0 {
		return true
	}
	for _, id := range p.ApplicableLaundryIDs {
		if id == laundryID {
			return true
		}
	}
	return false
}
