package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/laundry-order-api/internal/models"
)

// Policy holds the checkout fee rules
type Policy struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	ExpressFeeRate        decimal.Decimal
	StandardTurnaround    time.Duration
	ExpressTurnaround     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		DeliveryFee:           decimal.NewFromInt(100),
		FreeDeliveryThreshold: decimal.NewFromInt(1000),
		ExpressFeeRate:        decimal.RequireFromString("0.10"),
		StandardTurnaround:    48 * time.Hour,
		ExpressTurnaround:     24 * time.Hour,
	}
}

// Quote is the money breakdown of a checkout
type Quote struct {
	Lines              []Line          `json:"lines"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"delivery_fee"`
	ExpressFee         decimal.Decimal `json:"express_fee"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total_amount"`
	ExpectedDeliveryAt time.Time       `json:"expected_delivery_at"`
}

// Quote sums the lines and applies the delivery and express fee rules.
// The expected delivery is counted from pickupAt.
func (p Policy) Quote(laundry *models.Laundry, lines []Line, orderType models.OrderType, pickupAt time.Time) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total)
	}

	q := Quote{
		Lines:       lines,
		Subtotal:    subtotal,
		DeliveryFee: p.deliveryFee(laundry, subtotal),
		ExpressFee:  decimal.Zero,
		Discount:    decimal.Zero,
	}

	turnaround := p.StandardTurnaround
	if orderType == models.OrderTypeExpress {
		q.ExpressFee = subtotal.Mul(p.ExpressFeeRate).Round(0)
		turnaround = p.ExpressTurnaround
	}

	q.ExpectedDeliveryAt = pickupAt.Add(turnaround)
	q.Total = models.ComputeTotal(q.Subtotal, q.DeliveryFee, q.ExpressFee, q.Discount)
	return q
}

func (p Policy) deliveryFee(laundry *models.Laundry, subtotal decimal.Decimal) decimal.Decimal {
	if laundry != nil && laundry.FreePickupDelivery {
		return decimal.Zero
	}
	if subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.DeliveryFee
}

// ApplyDiscount sets the discount, capped so the total never goes below zero
func (q *Quote) ApplyDiscount(discount decimal.Decimal) {
	ceiling := q.Subtotal.Add(q.DeliveryFee).Add(q.ExpressFee)

	switch {
	case discount.IsNegative():
		discount = decimal.Zero
	case discount.GreaterThan(ceiling):
		discount = ceiling
	}

	q.Discount = discount
	q.Total = models.ComputeTotal(q.Subtotal, q.DeliveryFee, q.ExpressFee, q.Discount)
}
