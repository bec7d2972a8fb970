package service

import (
	"context"

	"github.com/vaidashi/laundry-order-api/internal/lifecycle"
	"github.com/vaidashi/laundry-order-api/internal/metrics"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

// UpdateOrderStatus moves an order along the laundry side of the lifecycle.
// REJECTED and CANCELLED need notes, which become the cancellation reason.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor models.Actor, orderID string, newStatus models.OrderStatus, notes string) (*models.Order, error) {
	order, err := s.updateOrderStatus(ctx, actor, orderID, newStatus, notes)
	metrics.RecordOrderOperation("update_status", err == nil)

	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyCustomerOrderStatus(ctx, order); err != nil {
		s.notificationFailed("customer_order_status", order, err)
	}

	return order, nil
}

func (s *OrderService) updateOrderStatus(ctx context.Context, actor models.Actor, orderID string, newStatus models.OrderStatus, notes string) (*models.Order, error) {
	if actor.Role != models.RoleLaundry && actor.Role != models.RoleAdmin {
		return nil, apperrors.NewForbiddenError("Only laundry staff can update order status")
	}

	if _, ok := models.ParseOrderStatus(string(newStatus)); !ok {
		return nil, apperrors.NewInvalidInputError("Unknown order status " + string(newStatus))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, toAppError(err, "Order not found")
	}

	if actor.Role == models.RoleLaundry && (actor.LaundryID == "" || order.LaundryID != actor.LaundryID) {
		return nil, apperrors.NewForbiddenError("Order does not belong to your laundry")
	}

	if err := lifecycle.Validate(order.Status, newStatus, order.PickupType); err != nil {
		return nil, err
	}

	notes = s.clean(notes)
	if (newStatus == models.StatusRejected || newStatus == models.StatusCancelled) && notes == "" {
		return nil, apperrors.NewValidationError(CodeReasonRequired, "A reason is required to "+verbFor(newStatus)+" an order")
	}

	return s.transition(ctx, actor, order, newStatus, notes)
}

// CancelOrder is the customer cancellation path. It is allowed while the
// order is still in the cancellable set, independent of the laundry edges.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, orderID, reason string) (*models.Order, error) {
	order, err := s.cancelOrder(ctx, actor, orderID, reason)
	metrics.RecordOrderOperation("cancel", err == nil)

	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyLaundryCancellation(ctx, order); err != nil {
		s.notificationFailed("laundry_cancellation", order, err)
	}

	return order, nil
}

func (s *OrderService) cancelOrder(ctx context.Context, actor models.Actor, orderID, reason string) (*models.Order, error) {
	order, err := s.customerOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.ValidateCustomerCancel(order.Status); err != nil {
		return nil, err
	}

	reason = s.clean(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError(CodeReasonRequired, "A reason is required to cancel an order")
	}

	return s.transition(ctx, actor, order, models.StatusCancelled, reason)
}

// ConfirmDelivery lets the customer mark an order out for delivery as delivered
func (s *OrderService) ConfirmDelivery(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	order, err := s.confirmDelivery(ctx, actor, orderID)
	metrics.RecordOrderOperation("confirm_delivery", err == nil)

	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyLaundryOrderStatus(ctx, order); err != nil {
		s.notificationFailed("laundry_order_status", order, err)
	}

	return order, nil
}

func (s *OrderService) confirmDelivery(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	order, err := s.customerOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != models.StatusOutForDelivery {
		return nil, apperrors.NewValidationError(CodeDeliveryNotConfirmed,
			"Cannot confirm delivery of order in "+string(order.Status)+" status")
	}

	return s.transition(ctx, actor, order, models.StatusDelivered, "Delivery confirmed by customer")
}

func (s *OrderService) customerOrder(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	if actor.Role != models.RoleCustomer {
		return nil, apperrors.NewForbiddenError("Only the customer can perform this action")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, toAppError(err, "Order not found")
	}

	if order.CustomerID != actor.ID {
		return nil, apperrors.NewForbiddenError("You do not have access to this order")
	}

	return order, nil
}

// transition writes one already validated status change together with its
// side effects, timeline entry, history entry and outbox event.
func (s *OrderService) transition(ctx context.Context, actor models.Actor, current *models.Order, to models.OrderStatus, notes string) (*models.Order, error) {
	from := current.Status
	now := s.now()

	order := *current
	order.Status = to
	order.UpdatedAt = now

	if milestone := order.MilestoneAt(to); milestone != nil && *milestone == nil {
		stamp := now
		*milestone = &stamp
	}

	switch to {
	case models.StatusCompleted:
		order.PaymentStatus = models.PaymentStatusCompleted
	case models.StatusRejected, models.StatusCancelled:
		reason := notes
		role := cancelledBy(actor)
		order.CancellationReason = &reason
		order.CancelledBy = &role
	}

	tmpl := lifecycle.TimelineFor(to)
	timeline := &models.TimelineEntry{
		ID:          models.NewID(),
		OrderID:     order.ID,
		Event:       string(to),
		Title:       tmpl.Title,
		Description: tmpl.Description,
		Icon:        tmpl.Icon,
		CreatedAt:   now,
	}

	history := &models.StatusHistoryEntry{
		ID:         models.NewID(),
		OrderID:    order.ID,
		FromStatus: &from,
		ToStatus:   to,
		ChangedBy:  actor.ID,
		ActorRole:  actor.Role,
		Notes:      notes,
		CreatedAt:  now,
	}

	event, err := models.NewOrderStatusChangedEvent(&order, from, actor, now)
	if err != nil {
		return nil, toAppError(err, "")
	}

	err = s.uow.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.UpdateStatus(ctx, &order, from); err != nil {
			return err
		}

		if to == models.StatusCompleted {
			if err := tx.CompletePayment(ctx, order.ID, now); err != nil {
				return err
			}
			if err := tx.RefreshLaundryCompletedOrders(ctx, order.LaundryID); err != nil {
				return err
			}
		}

		if err := tx.AppendTimeline(ctx, timeline); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, history); err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, event)
	})

	if err != nil {
		s.logger.Error("Failed to update order status",
			"error", err,
			"orderID", order.ID,
			"from", from,
			"to", to)
		return nil, toAppError(err, "Order not found")
	}

	if to == models.StatusCompleted && s.laundryCache != nil {
		s.laundryCache.InvalidateLaundry(ctx, order.LaundryID)
	}

	s.logger.Info("Order status updated",
		"orderID", order.ID,
		"from", from,
		"to", to,
		"actorRole", actor.Role)

	return &order, nil
}

func verbFor(status models.OrderStatus) string {
	if status == models.StatusRejected {
		return "reject"
	}
	return "cancel"
}

// cancelledBy records who ended the order. Anyone other than the customer acts
// on the laundry's behalf.
func cancelledBy(actor models.Actor) models.ActorRole {
	if actor.Role == models.RoleCustomer {
		return models.RoleCustomer
	}
	return models.RoleLaundry
}
