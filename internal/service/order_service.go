package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/vaidashi/laundry-order-api/internal/lifecycle"
	"github.com/vaidashi/laundry-order-api/internal/metrics"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/notification"
	"github.com/vaidashi/laundry-order-api/internal/ordernumber"
	"github.com/vaidashi/laundry-order-api/internal/pricing"
	"github.com/vaidashi/laundry-order-api/internal/promo"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
	"github.com/vaidashi/laundry-order-api/pkg/retry"
)

const defaultOrderNumberAttempts = 3

// OrderReader is the read side of orders
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error)
	ListItems(ctx context.Context, orderID string) ([]*models.OrderItem, error)
	GetPayment(ctx context.Context, orderID string) (*models.Payment, error)
	ListTimeline(ctx context.Context, orderID string) ([]*models.TimelineEntry, error)
	ListHistory(ctx context.Context, orderID string) ([]*models.StatusHistoryEntry, error)
}

// PromoValidator checks promo applicability without side effects
type PromoValidator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, customerID, laundryID string) (*promo.Result, error)
}

// LaundryInvalidator drops cached laundry data after its counters change
type LaundryInvalidator interface {
	InvalidateLaundry(ctx context.Context, laundryID string)
}

// OrderServiceDeps bundles collaborators required to construct the order service
type OrderServiceDeps struct {
	UnitOfWork             repository.UnitOfWork
	Orders                 OrderReader
	Catalog                repository.CatalogReader
	Promos                 PromoValidator
	Notifier               notification.Dispatcher
	LaundryCache           LaundryInvalidator
	Policy                 pricing.Policy
	OrderNumberMaxAttempts int
	Clock                  func() time.Time
	Logger                 logger.Logger
}

// OrderService runs checkout and the order lifecycle
type OrderService struct {
	uow          repository.UnitOfWork
	orders       OrderReader
	catalog      repository.CatalogReader
	promos       PromoValidator
	notifier     notification.Dispatcher
	laundryCache LaundryInvalidator
	policy       pricing.Policy
	maxAttempts  int
	clock        func() time.Time
	sanitizer    *bluemonday.Policy
	logger       logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order reader is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog reader is required")
	}
	if deps.Promos == nil {
		return nil, errors.New("order service: promo validator is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("order service: notifier is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	attempts := deps.OrderNumberMaxAttempts
	if attempts < 1 {
		attempts = defaultOrderNumberAttempts
	}

	return &OrderService{
		uow:          deps.UnitOfWork,
		orders:       deps.Orders,
		catalog:      deps.Catalog,
		promos:       deps.Promos,
		notifier:     deps.Notifier,
		laundryCache: deps.LaundryCache,
		policy:       deps.Policy,
		maxAttempts:  attempts,
		clock: func() time.Time {
			return clock().UTC()
		},
		sanitizer: bluemonday.StrictPolicy(),
		logger:    log,
	}, nil
}

func (s *OrderService) now() time.Time {
	return s.clock()
}

// clean strips markup from free text supplied by callers
func (s *OrderService) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(text)))
}

// QuoteOrder prices a checkout without persisting it
func (s *OrderService) QuoteOrder(ctx context.Context, actor models.Actor, req CreateOrderRequest) (*QuoteResult, error) {
	_, quote, result, err := s.price(ctx, actor, &req)
	if err != nil {
		return nil, err
	}

	out := &QuoteResult{Quote: quote}
	if result != nil {
		out.PromoCode = result.Promo.Code
	}
	return out, nil
}

// ValidatePromo previews a promo code for the calling customer
func (s *OrderService) ValidatePromo(ctx context.Context, actor models.Actor, req ValidatePromoRequest) (*promo.Result, error) {
	if actor.Role != models.RoleCustomer {
		return nil, apperrors.NewForbiddenError("Only customers can apply promo codes")
	}
	if req.Amount.IsNegative() {
		return nil, apperrors.NewInvalidInputError("Amount must not be negative")
	}

	result, err := s.promos.Validate(ctx, req.Code, req.Amount, actor.ID, req.LaundryID)
	if err != nil {
		return nil, toAppError(err, "Promo code not found")
	}
	return result, nil
}

// price runs every read-only checkout step: laundry, lines, fees, promo and delivery estimate
func (s *OrderService) price(ctx context.Context, actor models.Actor, req *CreateOrderRequest) (*models.Laundry, pricing.Quote, *promo.Result, error) {
	if actor.Role != models.RoleCustomer {
		return nil, pricing.Quote{}, nil, apperrors.NewForbiddenError("Only customers can place orders")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, pricing.Quote{}, nil, err
	}

	laundry, err := s.catalog.FindLaundry(ctx, req.LaundryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, pricing.Quote{}, nil, toAppError(err, "")
	}
	if laundry == nil || !laundry.AcceptsOrders() {
		return nil, pricing.Quote{}, nil, apperrors.NewNotFoundError("Laundry not found or not active").
			WithCode(CodeLaundryUnavailable)
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		entry, err := s.catalog.FindPricing(ctx, laundry.ID, item.ServiceCategoryID, item.ClothingItemID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, pricing.Quote{}, nil, toAppError(err, "")
		}

		item.Notes = s.clean(item.Notes)
		line, err := pricing.ResolveLine(entry, laundry, item, req.OrderType)
		if err != nil {
			return nil, pricing.Quote{}, nil, err
		}
		lines = append(lines, line)
	}

	pickupAt := s.now()
	if req.PickupDate != nil {
		pickupAt = req.PickupDate.UTC()
	}

	quote := s.policy.Quote(laundry, lines, req.OrderType, pickupAt)

	var result *promo.Result
	if strings.TrimSpace(req.PromoCode) != "" {
		result, err = s.promos.Validate(ctx, req.PromoCode, quote.Subtotal, actor.ID, laundry.ID)
		if err != nil {
			return nil, pricing.Quote{}, nil, toAppError(err, "Promo code not found")
		}
		quote.ApplyDiscount(result.Discount)
	}

	return laundry, quote, result, nil
}

func (s *OrderService) validateRequest(req *CreateOrderRequest) error {
	req.LaundryID = strings.TrimSpace(req.LaundryID)
	if req.LaundryID == "" {
		return apperrors.NewInvalidInputError("laundry_id is required")
	}
	if len(req.Items) == 0 {
		return apperrors.NewValidationError(CodeEmptyOrder, "Order must contain at least one item")
	}

	if req.OrderType == "" {
		req.OrderType = models.OrderTypeStandard
	}
	if req.OrderType != models.OrderTypeStandard && req.OrderType != models.OrderTypeExpress {
		return apperrors.NewInvalidInputError("Unknown order type " + string(req.OrderType))
	}

	if req.PickupType == "" {
		req.PickupType = models.PickupTypeRider
	}
	if req.PickupType != models.PickupTypeRider && req.PickupType != models.PickupTypeSelfDropOff {
		return apperrors.NewInvalidInputError("Unknown pickup type " + string(req.PickupType))
	}

	switch req.PaymentMethod {
	case "":
		req.PaymentMethod = models.PaymentMethodCashOnDelivery
	case models.PaymentMethodCashOnDelivery, models.PaymentMethodCard, models.PaymentMethodWallet:
	default:
		return apperrors.NewInvalidInputError("Unknown payment method " + string(req.PaymentMethod))
	}

	req.PickupAddress = s.clean(req.PickupAddress)
	req.DeliveryAddress = s.clean(req.DeliveryAddress)
	if req.DeliveryAddress == "" {
		return apperrors.NewInvalidInputError("delivery_address is required")
	}
	if req.PickupType == models.PickupTypeRider && req.PickupAddress == "" {
		return apperrors.NewInvalidInputError("pickup_address is required for rider pickup")
	}

	req.PickupTimeSlot = s.clean(req.PickupTimeSlot)
	req.SpecialInstructions = s.clean(req.SpecialInstructions)
	return nil
}

// CreateOrder prices the checkout, then persists the order with its items,
// payment, initial timeline and history entries and the promo usage in one
// transaction. A lost race for the order number retries the transaction.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req CreateOrderRequest) (*models.Order, error) {
	order, err := s.createOrder(ctx, actor, req)
	metrics.RecordOrderOperation("create", err == nil)

	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyLaundryNewOrder(ctx, order); err != nil {
		s.notificationFailed("laundry_new_order", order, err)
	}

	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, actor models.Actor, req CreateOrderRequest) (*models.Order, error) {
	laundry, quote, promoResult, err := s.price(ctx, actor, &req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		ID:                  models.NewID(),
		CustomerID:          actor.ID,
		LaundryID:           laundry.ID,
		OrderType:           req.OrderType,
		PickupType:          req.PickupType,
		Status:              models.StatusPending,
		PaymentStatus:       models.PaymentStatusPending,
		PaymentMethod:       req.PaymentMethod,
		Subtotal:            quote.Subtotal,
		DeliveryFee:         quote.DeliveryFee,
		ExpressFee:          quote.ExpressFee,
		Discount:            quote.Discount,
		PickupAddress:       req.PickupAddress,
		DeliveryAddress:     req.DeliveryAddress,
		PickupDate:          req.PickupDate,
		PickupTimeSlot:      req.PickupTimeSlot,
		ExpectedDeliveryAt:  quote.ExpectedDeliveryAt,
		SpecialInstructions: req.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	order.RecalculateTotal()

	if promoResult != nil {
		order.PromoCodeID = &promoResult.Promo.ID
		order.PromoCode = &promoResult.Promo.Code
	}

	order.Items = make([]*models.OrderItem, len(quote.Lines))
	for i, line := range quote.Lines {
		order.Items[i] = &models.OrderItem{
			ID:                models.NewID(),
			OrderID:           order.ID,
			ServiceCategoryID: line.ServiceCategoryID,
			ClothingItemID:    line.ClothingItemID,
			PriceUnit:         line.PriceUnit,
			Quantity:          line.Quantity,
			WeightKg:          line.WeightKg,
			UnitPrice:         line.UnitPrice,
			TotalPrice:        line.Total,
			Notes:             line.Notes,
			CreatedAt:         now,
		}
	}

	order.Payment = &models.Payment{
		ID:        models.NewID(),
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Method:    order.PaymentMethod,
		Status:    models.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tmpl := lifecycle.TimelineFor(models.StatusPending)
	timeline := &models.TimelineEntry{
		ID:          models.NewID(),
		OrderID:     order.ID,
		Event:       string(models.StatusPending),
		Title:       tmpl.Title,
		Description: tmpl.Description,
		Icon:        tmpl.Icon,
		CreatedAt:   now,
	}

	history := &models.StatusHistoryEntry{
		ID:        models.NewID(),
		OrderID:   order.ID,
		ToStatus:  models.StatusPending,
		ChangedBy: actor.ID,
		ActorRole: actor.Role,
		CreatedAt: now,
	}

	persist := func() error {
		return s.uow.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			latest, err := tx.LatestOrderNumber(ctx, ordernumber.DayPrefix(now))
			if err != nil {
				return err
			}

			number, err := ordernumber.Next(now, latest)
			if err != nil {
				return err
			}
			order.OrderNumber = number

			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			if err := tx.InsertItems(ctx, order.Items); err != nil {
				return err
			}
			if err := tx.InsertPayment(ctx, order.Payment); err != nil {
				return err
			}
			if err := tx.AppendTimeline(ctx, timeline); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, history); err != nil {
				return err
			}
			if promoResult != nil {
				if err := tx.IncrementPromoUsage(ctx, promoResult.Promo.ID); err != nil {
					return err
				}
			}

			event, err := models.NewOrderCreatedEvent(order, now)
			if err != nil {
				return err
			}
			return tx.EnqueueOutbox(ctx, event)
		})
	}

	err = retry.Retry(ctx, persist, &retry.RetryConfig{
		MaxAttempts:     s.maxAttempts,
		BackoffStrategy: &retry.ConstantBackoff{},
		Logger:          s.logger,
		RetryableErrors: []error{repository.ErrDuplicateOrderNumber},
	})

	if err != nil {
		s.logger.Error("Failed to create order", "error", err, "customerID", actor.ID, "laundryID", laundry.ID)
		return nil, toAppError(err, "")
	}

	s.logger.Info("Order created",
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"laundryID", order.LaundryID,
		"total", order.TotalAmount.StringFixed(2))

	return order, nil
}

func (s *OrderService) notificationFailed(kind string, order *models.Order, err error) {
	metrics.RecordNotificationFailure(kind)
	s.logger.Warn("Failed to send notification",
		"error", err,
		"kind", kind,
		"orderID", order.ID,
		"status", order.Status)
}
