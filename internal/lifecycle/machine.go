// Package lifecycle defines which order status changes are legal.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/vaidashi/laundry-order-api/internal/models"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

const (
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeNotCancellable    = "ORDER_NOT_CANCELLABLE"
)

// index maps each status onto a row/column of the transition matrix
var index = func() map[models.OrderStatus]int {
	m := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	for i, s := range models.OrderStatuses {
		m[s] = i
	}
	return m
}()

var matrix [11][11]bool

type conditionalEdge struct {
	from, to models.OrderStatus
	when     func(models.PickupType) bool
}

// Self drop-off orders skip the pickup leg.
var conditional = []conditionalEdge{
	{
		from: models.StatusAccepted,
		to:   models.StatusProcessing,
		when: func(p models.PickupType) bool { return p == models.PickupTypeSelfDropOff },
	},
}

var cancellable = map[models.OrderStatus]bool{
	models.StatusPending:         true,
	models.StatusAccepted:        true,
	models.StatusPickupScheduled: true,
	models.StatusPickedUp:        true,
}

func allow(from models.OrderStatus, to ...models.OrderStatus) {
	for _, t := range to {
		matrix[index[from]][index[t]] = true
	}
}

func init() {
	if len(models.OrderStatuses) != len(matrix) {
		panic("lifecycle: transition matrix does not cover every order status")
	}

	allow(models.StatusPending, models.StatusAccepted, models.StatusRejected, models.StatusCancelled)
	allow(models.StatusAccepted, models.StatusPickupScheduled, models.StatusCancelled)
	allow(models.StatusPickupScheduled, models.StatusPickedUp, models.StatusCancelled)
	allow(models.StatusPickedUp, models.StatusProcessing, models.StatusCancelled)
	allow(models.StatusProcessing, models.StatusReady)
	allow(models.StatusReady, models.StatusOutForDelivery)
	allow(models.StatusOutForDelivery, models.StatusDelivered)
	allow(models.StatusDelivered, models.StatusCompleted)
}

// Allowed lists the statuses reachable from from, in lifecycle order
func Allowed(from models.OrderStatus, pickup models.PickupType) []models.OrderStatus {
	var out []models.OrderStatus

	for _, to := range models.OrderStatuses {
		if CanTransition(from, to, pickup) {
			out = append(out, to)
		}
	}
	return out
}

// CanTransition reports whether from -> to is a legal edge for an order with the given pickup type
func CanTransition(from, to models.OrderStatus, pickup models.PickupType) bool {
	i, ok := index[from]
	if !ok {
		return false
	}
	j, ok := index[to]
	if !ok {
		return false
	}

	if matrix[i][j] {
		return true
	}

	for _, edge := range conditional {
		if edge.from == from && edge.to == to && edge.when(pickup) {
			return true
		}
	}
	return false
}

// Validate returns a 400 AppError naming the permitted targets when from -> to is illegal
func Validate(from, to models.OrderStatus, pickup models.PickupType) error {
	if CanTransition(from, to, pickup) {
		return nil
	}

	allowed := Allowed(from, pickup)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}

	return apperrors.NewValidationError(CodeInvalidTransition,
		fmt.Sprintf("Invalid status transition from %s to %s. Allowed: %s", from, to, strings.Join(names, ", "))).
		WithContext("from", from).
		WithContext("to", to)
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status models.OrderStatus) bool {
	return len(Allowed(status, models.PickupTypeSelfDropOff)) == 0 &&
		len(Allowed(status, models.PickupTypeRider)) == 0
}

// IsCancellable reports whether a customer may still cancel
func IsCancellable(status models.OrderStatus) bool {
	return cancellable[status]
}

// ValidateCustomerCancel checks the customer cancellation rule
func ValidateCustomerCancel(status models.OrderStatus) error {
	if IsCancellable(status) {
		return nil
	}
	return apperrors.NewValidationError(CodeNotCancellable,
		fmt.Sprintf("Cannot cancel order in %s status", status))
}
