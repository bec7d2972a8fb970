// Package pricing turns catalog prices into order lines and checkout totals.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/laundry-order-api/internal/models"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

const (
	CodePricingNotFound = "PRICING_NOT_FOUND"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeWeightRequired  = "WEIGHT_REQUIRED"
)

// DefaultExpressMultiplier applies when a laundry has no usable multiplier configured
var DefaultExpressMultiplier = decimal.NewFromFloat(1.5)

// LineRequest is one requested item at checkout
type LineRequest struct {
	ServiceCategoryID string           `json:"service_category_id"`
	ClothingItemID    string           `json:"clothing_item_id"`
	Quantity          int              `json:"quantity"`
	WeightKg          *decimal.Decimal `json:"weight_kg,omitempty"`
	Notes             string           `json:"notes,omitempty"`
}

// Line is a priced line. UnitPrice already includes any express uplift.
type Line struct {
	ServiceCategoryID string              `json:"service_category_id"`
	ClothingItemID    string              `json:"clothing_item_id"`
	PriceUnit         models.PriceUnit    `json:"price_unit"`
	Quantity          int                 `json:"quantity"`
	WeightKg          decimal.NullDecimal `json:"weight_kg"`
	UnitPrice         decimal.Decimal     `json:"unit_price"`
	Total             decimal.Decimal     `json:"total"`
	Notes             string              `json:"notes,omitempty"`
}

// ResolveLine prices req against entry. A nil or inactive entry is PRICING_NOT_FOUND.
func ResolveLine(entry *models.PricingEntry, laundry *models.Laundry, req LineRequest, orderType models.OrderType) (Line, error) {
	if entry == nil || !entry.IsActive {
		return Line{}, apperrors.NewValidationError(CodePricingNotFound,
			fmt.Sprintf("Pricing not found for service category %s and clothing item %s", req.ServiceCategoryID, req.ClothingItemID)).
			WithContext("serviceCategoryID", req.ServiceCategoryID).
			WithContext("clothingItemID", req.ClothingItemID)
	}

	unit := UnitPrice(entry, laundry, orderType)

	line := Line{
		ServiceCategoryID: req.ServiceCategoryID,
		ClothingItemID:    req.ClothingItemID,
		PriceUnit:         entry.PriceUnit,
		UnitPrice:         unit,
		Notes:             req.Notes,
	}

	switch entry.PriceUnit {
	case models.PriceUnitKg:
		if req.WeightKg == nil || !req.WeightKg.IsPositive() {
			return Line{}, apperrors.NewValidationError(CodeWeightRequired,
				fmt.Sprintf("Weight is required for clothing item %s priced per kg", req.ClothingItemID))
		}
		line.Quantity = 1
		line.WeightKg = decimal.NewNullDecimal(*req.WeightKg)
		line.Total = unit.Mul(*req.WeightKg).Round(2)
	default:
		if req.Quantity < 1 {
			return Line{}, apperrors.NewValidationError(CodeInvalidQuantity,
				fmt.Sprintf("Quantity must be at least 1 for clothing item %s", req.ClothingItemID))
		}
		line.Quantity = req.Quantity
		line.Total = unit.Mul(decimal.NewFromInt(int64(req.Quantity)))
	}

	return line, nil
}

// UnitPrice is the per-unit price for the order type. Express orders use the
// configured express price, or the base price times the laundry multiplier rounded up.
func UnitPrice(entry *models.PricingEntry, laundry *models.Laundry, orderType models.OrderType) decimal.Decimal {
	if orderType != models.OrderTypeExpress {
		return entry.Price
	}

	if entry.ExpressPrice.Valid {
		return entry.ExpressPrice.Decimal
	}

	multiplier := DefaultExpressMultiplier
	if laundry != nil && laundry.ExpressMultiplier.IsPositive() {
		multiplier = laundry.ExpressMultiplier
	}

	return entry.Price.Mul(multiplier).Ceil()
}
