package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

const orderColumns = `
	id, order_number, customer_id, laundry_id, order_type, pickup_type, status,
	payment_status, payment_method, subtotal, delivery_fee, express_fee, discount,
	total_amount, promo_code_id, promo_code, pickup_address, delivery_address,
	pickup_date, pickup_time_slot, expected_delivery_at, special_instructions,
	accepted_at, pickup_scheduled_at, picked_up_at, processing_at, ready_at,
	out_for_delivery_at, delivered_at, completed_at, cancelled_at,
	cancellation_reason, cancelled_by, created_at, updated_at`

// OrderFilter scopes a listing. Empty fields do not filter.
type OrderFilter struct {
	CustomerID string
	LaundryID  string
	Status     models.OrderStatus
	Limit      int
	Offset     int
}

// OrderRepository handles reads of orders and their append-only children
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// List retrieves orders newest first
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.CustomerID != "" {
		add("customer_id", filter.CustomerID)
	}
	if filter.LaundryID != "" {
		add("laundry_id", filter.LaundryID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}

	query := `SELECT` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []*models.Order{}
	err := r.db.DB.SelectContext(ctx, &orders, query, args...)

	if err != nil {
		r.logger.Error("Failed to list orders", "error", err, "limit", filter.Limit, "offset", filter.Offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// ListItems returns the priced lines of an order
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	query := `
		SELECT id, order_id, service_category_id, clothing_item_id, price_unit, quantity,
			   weight_kg, unit_price, total_price, notes, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	items := []*models.OrderItem{}
	if err := r.db.DB.SelectContext(ctx, &items, query, orderID); err != nil {
		r.logger.Error("Failed to list order items", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// GetPayment returns the payment record of an order
func (r *OrderRepository) GetPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	query := `
		SELECT id, order_id, amount, method, status, paid_at, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`

	var payment models.Payment
	err := r.db.DB.GetContext(ctx, &payment, query, orderID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get payment", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &payment, nil
}

// ListTimeline returns timeline entries newest first
func (r *OrderRepository) ListTimeline(ctx context.Context, orderID string) ([]*models.TimelineEntry, error) {
	query := `
		SELECT id, order_id, event, title, description, icon, created_at
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
	`

	entries := []*models.TimelineEntry{}
	if err := r.db.DB.SelectContext(ctx, &entries, query, orderID); err != nil {
		r.logger.Error("Failed to list timeline", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return entries, nil
}

// ListHistory returns status history entries oldest first
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]*models.StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, from_status, to_status, changed_by, actor_role, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	entries := []*models.StatusHistoryEntry{}
	if err := r.db.DB.SelectContext(ctx, &entries, query, orderID); err != nil {
		r.logger.Error("Failed to list status history", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return entries, nil
}

// CountCompletedOrders counts the customer's orders that reached COMPLETED
func (r *OrderRepository) CountCompletedOrders(ctx context.Context, customerID string) (int, error) {
	var count int
	err := r.db.DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND status = $2`,
		customerID, models.StatusCompleted)

	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// LatestOrderNumber returns the highest order number starting with prefix, or "" if none
func (t *sqlTx) LatestOrderNumber(ctx context.Context, prefix string) (string, error) {
	query := `
		SELECT order_number FROM orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY LENGTH(order_number) DESC, order_number DESC
		LIMIT 1
	`

	var number string
	err := t.tx.GetContext(ctx, &number, query, prefix)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return number, nil
}

// InsertOrder inserts the order and reads back the generated total
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, customer_id, laundry_id, order_type, pickup_type, status,
			payment_status, payment_method, subtotal, delivery_fee, express_fee, discount,
			promo_code_id, promo_code, pickup_address, delivery_address, pickup_date,
			pickup_time_slot, expected_delivery_at, special_instructions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23
		) RETURNING total_amount
	`

	err := t.tx.QueryRowxContext(
		ctx,
		query,
		order.ID,
		order.OrderNumber,
		order.CustomerID,
		order.LaundryID,
		order.OrderType,
		order.PickupType,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		order.Subtotal,
		order.DeliveryFee,
		order.ExpressFee,
		order.Discount,
		order.PromoCodeID,
		order.PromoCode,
		order.PickupAddress,
		order.DeliveryAddress,
		order.PickupDate,
		order.PickupTimeSlot,
		order.ExpectedDeliveryAt,
		order.SpecialInstructions,
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.TotalAmount)

	if err != nil {
		if isOrderNumberConflict(err) {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// InsertItems inserts the priced lines of a new order
func (t *sqlTx) InsertItems(ctx context.Context, items []*models.OrderItem) error {
	query := `
		INSERT INTO order_items (
			id, order_id, service_category_id, clothing_item_id, price_unit, quantity,
			weight_kg, unit_price, total_price, notes, created_at
		) VALUES (
			:id, :order_id, :service_category_id, :clothing_item_id, :price_unit, :quantity,
			:weight_kg, :unit_price, :total_price, :notes, :created_at
		)
	`

	for _, item := range items {
		if _, err := t.tx.NamedExecContext(ctx, query, item); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	return nil
}

// InsertPayment inserts the open payment of a new order
func (t *sqlTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, amount, method, status, paid_at, created_at, updated_at)
		VALUES (:id, :order_id, :amount, :method, :status, :paid_at, :created_at, :updated_at)
	`

	if _, err := t.tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// AppendTimeline inserts a timeline entry
func (t *sqlTx) AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error {
	query := `
		INSERT INTO order_timeline (id, order_id, event, title, description, icon, created_at)
		VALUES (:id, :order_id, :event, :title, :description, :icon, :created_at)
	`

	if _, err := t.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// AppendHistory inserts a status history entry
func (t *sqlTx) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, changed_by, actor_role, notes, created_at)
		VALUES (:id, :order_id, :from_status, :to_status, :changed_by, :actor_role, :notes, :created_at)
	`

	if _, err := t.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// UpdateStatus writes the lifecycle fields of order only if the stored status
// still equals expected. A miss returns ErrConflict.
func (t *sqlTx) UpdateStatus(ctx context.Context, order *models.Order, expected models.OrderStatus) error {
	query := `
		UPDATE orders SET
			status = $3,
			payment_status = $4,
			accepted_at = $5,
			pickup_scheduled_at = $6,
			picked_up_at = $7,
			processing_at = $8,
			ready_at = $9,
			out_for_delivery_at = $10,
			delivered_at = $11,
			completed_at = $12,
			cancelled_at = $13,
			cancellation_reason = $14,
			cancelled_by = $15,
			updated_at = $16
		WHERE id = $1 AND status = $2
	`

	rows, err := t.exec(
		ctx,
		query,
		order.ID,
		expected,
		order.Status,
		order.PaymentStatus,
		order.AcceptedAt,
		order.PickupScheduledAt,
		order.PickedUpAt,
		order.ProcessingAt,
		order.ReadyAt,
		order.OutForDeliveryAt,
		order.DeliveredAt,
		order.CompletedAt,
		order.CancelledAt,
		order.CancellationReason,
		order.CancelledBy,
		order.UpdatedAt,
	)

	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrConflict
	}

	return nil
}

// CompletePayment settles the payment of an order
func (t *sqlTx) CompletePayment(ctx context.Context, orderID string, at time.Time) error {
	rows, err := t.exec(ctx,
		`UPDATE payments SET status = $2, paid_at = $3, updated_at = $3 WHERE order_id = $1`,
		orderID, models.PaymentStatusCompleted, at)

	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// RefreshLaundryCompletedOrders recounts completed orders from the orders table
func (t *sqlTx) RefreshLaundryCompletedOrders(ctx context.Context, laundryID string) error {
	query := `
		UPDATE laundries SET
			completed_orders = (SELECT COUNT(*) FROM orders WHERE laundry_id = $1 AND status = $2),
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := t.exec(ctx, query, laundryID, models.StatusCompleted)
	return err
}
