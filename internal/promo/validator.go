// Package promo decides whether a promo code applies to a checkout and what it is worth.
package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

// Rejection codes, in the order the checks run
const (
	CodeInvalid              = "INVALID_PROMO"
	CodeInactive             = "PROMO_INACTIVE"
	CodeNotStarted           = "PROMO_NOT_STARTED"
	CodeExpired              = "PROMO_EXPIRED"
	CodeLimitReached         = "PROMO_LIMIT_REACHED"
	CodeMinOrderNotMet       = "MIN_ORDER_NOT_MET"
	CodeFirstOrderOnly       = "FIRST_ORDER_ONLY"
	CodeLaundryNotApplicable = "LAUNDRY_NOT_APPLICABLE"
)

const DefaultCurrencySymbol = "₨"

var hundred = decimal.NewFromInt(100)

// PromoStore looks promo codes up by their normalized code
type PromoStore interface {
	FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// CustomerHistory counts a customer's completed orders
type CustomerHistory interface {
	CountCompletedOrders(ctx context.Context, customerID string) (int, error)
}

type Validator struct {
	promos   PromoStore
	history  CustomerHistory
	now      func() time.Time
	printer  *message.Printer
	currency string
}

type ValidatorDeps struct {
	Promos         PromoStore
	History        CustomerHistory
	Now            func() time.Time
	CurrencySymbol string
}

func NewValidator(deps ValidatorDeps) (*Validator, error) {
	if deps.Promos == nil {
		return nil, errors.New("promo validator: promo store is required")
	}
	if deps.History == nil {
		return nil, errors.New("promo validator: customer history is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	currency := deps.CurrencySymbol
	if currency == "" {
		currency = DefaultCurrencySymbol
	}

	return &Validator{
		promos:   deps.Promos,
		history:  deps.History,
		now:      func() time.Time { return now().UTC() },
		printer:  message.NewPrinter(language.English),
		currency: currency,
	}, nil
}

// Result is an applicable promo and the discount it grants
type Result struct {
	Promo    *models.PromoCode `json:"promo"`
	Discount decimal.Decimal   `json:"discount"`
}

// NormalizeCode upper-cases and trims a user supplied code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate runs the applicability checks against orderAmount. It never changes usage counters.
func (v *Validator) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, customerID, laundryID string) (*Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, reject(CodeInvalid, "Invalid promo code")
	}

	promo, err := v.promos.FindPromoByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject(CodeInvalid, "Invalid promo code")
		}
		return nil, fmt.Errorf("find promo %s: %w", normalized, err)
	}

	now := v.now()

	switch {
	case !promo.IsActive:
		return nil, reject(CodeInactive, "Promo code is not active")
	case now.Before(promo.ValidFrom):
		return nil, reject(CodeNotStarted, "Promo code is not yet valid")
	case now.After(promo.ValidUntil):
		return nil, reject(CodeExpired, "Promo code has expired")
	case promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit:
		return nil, reject(CodeLimitReached, "Promo code usage limit reached")
	case orderAmount.LessThan(promo.MinOrderAmount):
		return nil, reject(CodeMinOrderNotMet, "Minimum order amount is "+v.FormatAmount(promo.MinOrderAmount))
	}

	if promo.FirstOrderOnly {
		completed, err := v.history.CountCompletedOrders(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("count completed orders: %w", err)
		}
		if completed > 0 {
			return nil, reject(CodeFirstOrderOnly, "Promo code is only valid on your first order")
		}
	}

	if !promo.AppliesToLaundry(laundryID) {
		return nil, reject(CodeLaundryNotApplicable, "Promo code is not applicable for this laundry")
	}

	return &Result{Promo: promo, Discount: Discount(promo, orderAmount)}, nil
}

// Discount computes the discount of promo on amount, rounded to whole currency units
func Discount(promo *models.PromoCode, amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch promo.DiscountType {
	case models.DiscountPercentage:
		discount = amount.Mul(promo.DiscountValue).Div(hundred)
		if promo.MaxDiscount.Valid && discount.GreaterThan(promo.MaxDiscount.Decimal) {
			discount = promo.MaxDiscount.Decimal
		}
	case models.DiscountFixed:
		discount = decimal.Min(promo.DiscountValue, amount)
	default:
		return decimal.Zero
	}

	return discount.Round(0)
}

// FormatAmount renders an amount with the currency symbol and thousands separators
func (v *Validator) FormatAmount(amount decimal.Decimal) string {
	if amount.IsInteger() {
		return v.currency + v.printer.Sprintf("%d", amount.IntPart())
	}
	return v.currency + v.printer.Sprintf("%.2f", amount.InexactFloat64())
}

func reject(code, msg string) error {
	return apperrors.NewValidationError(code, msg)
}
