package service

import (
	"context"
	"errors"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

// GetOrder returns an order with its items and payment if the actor may see it
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	order, err := s.visibleOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, toAppError(err, "")
	}
	order.Items = items

	payment, err := s.orders.GetPayment(ctx, order.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, toAppError(err, "")
	}
	order.Payment = payment

	return order, nil
}

// ListOrders returns the orders the actor may see, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor, req ListOrdersRequest) ([]*models.Order, error) {
	req.normalize()

	filter := repository.OrderFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	switch actor.Role {
	case models.RoleCustomer:
		filter.CustomerID = actor.ID
	case models.RoleLaundry:
		if actor.LaundryID == "" {
			return nil, apperrors.NewForbiddenError("Laundry staff token has no laundry")
		}
		filter.LaundryID = actor.LaundryID
	case models.RoleAdmin:
	default:
		return nil, apperrors.NewForbiddenError("Unknown role")
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, toAppError(err, "")
	}
	return orders, nil
}

// GetTimeline returns the customer-facing milestones, newest first
func (s *OrderService) GetTimeline(ctx context.Context, actor models.Actor, id string) ([]*models.TimelineEntry, error) {
	if _, err := s.visibleOrder(ctx, actor, id); err != nil {
		return nil, err
	}

	entries, err := s.orders.ListTimeline(ctx, id)
	if err != nil {
		return nil, toAppError(err, "")
	}
	return entries, nil
}

// GetStatusHistory returns the status audit trail, oldest first
func (s *OrderService) GetStatusHistory(ctx context.Context, actor models.Actor, id string) ([]*models.StatusHistoryEntry, error) {
	if _, err := s.visibleOrder(ctx, actor, id); err != nil {
		return nil, err
	}

	entries, err := s.orders.ListHistory(ctx, id)
	if err != nil {
		return nil, toAppError(err, "")
	}
	return entries, nil
}

func (s *OrderService) visibleOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, toAppError(err, "Order not found")
	}

	if !actor.CanView(order) {
		return nil, apperrors.NewForbiddenError("You do not have access to this order")
	}
	return order, nil
}
