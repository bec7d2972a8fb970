package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")

	// ErrConflict is returned when a conditional write matched no row
	ErrConflict = errors.New("concurrent modification")

	// ErrDuplicateOrderNumber is returned when an insert lost the race for an order number
	ErrDuplicateOrderNumber = errors.New("duplicate order number")

	// ErrPromoLimitReached is returned when the guarded usage increment matched no row
	ErrPromoLimitReached = errors.New("promo usage limit reached")
)

const (
	pqUniqueViolation           = "23505"
	orderNumberUniqueConstraint = "orders_order_number_key"
)

func isOrderNumberConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && pqErr.Constraint == orderNumberUniqueConstraint
}
