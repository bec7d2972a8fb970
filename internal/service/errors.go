package service

import (
	"errors"
	"net/http"

	"github.com/vaidashi/laundry-order-api/internal/promo"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
	"github.com/vaidashi/laundry-order-api/pkg/retry"
)

const (
	CodeLaundryUnavailable   = "LAUNDRY_NOT_AVAILABLE"
	CodeEmptyOrder           = "EMPTY_ORDER"
	CodeReasonRequired       = "REASON_REQUIRED"
	CodeTransitionConflict   = "TRANSITION_CONFLICT"
	CodeOrderNumberExhausted = "ORDER_NUMBER_EXHAUSTED"
	CodeDeliveryNotConfirmed = "DELIVERY_NOT_CONFIRMABLE"
)

// toAppError maps repository failures onto client-visible errors. AppErrors pass through.
func toAppError(err error, notFound string) error {
	if err == nil {
		return nil
	}

	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError(notFound)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflictError("Order was modified concurrently, reload and try again").
			WithCode(CodeTransitionConflict)
	case errors.Is(err, repository.ErrPromoLimitReached):
		return apperrors.NewValidationError(promo.CodeLimitReached, "Promo code usage limit reached")
	case errors.Is(err, retry.ErrAttemptsExhausted) && errors.Is(err, repository.ErrDuplicateOrderNumber):
		return apperrors.NewConflictError("Could not allocate an order number, please retry").
			WithCode(CodeOrderNumberExhausted)
	default:
		return apperrors.NewAppError(err, "Internal server error", http.StatusInternalServerError, false)
	}
}
