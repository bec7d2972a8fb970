package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

type fixture struct {
	db       *database.Database
	tx       *TxManager
	orders   *OrderRepository
	catalog  *CatalogRepository
	promos   *PromoRepository
	outbox   *OutboxRepository
	dlq      *DeadLetterRepository
	laundry  string
	promoID  string
	baseTime time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("laundry"),
		postgres.WithUsername("laundry"),
		postgres.WithPassword("laundry"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := logger.NewNop()
	db, err := database.Open(dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())

	f := &fixture{
		db:       db,
		tx:       NewTxManager(db, log),
		orders:   NewOrderRepository(db, log),
		catalog:  NewCatalogRepository(db, log),
		promos:   NewPromoRepository(db, log),
		outbox:   NewOutboxRepository(db, log),
		dlq:      NewDeadLetterRepository(db, log),
		laundry:  "laundry-1",
		promoID:  "promo-1",
		baseTime: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	db.DB.MustExec(`INSERT INTO laundries (id, name, owner_id, status) VALUES ($1, 'Fresh Fold', 'owner-1', 'ACTIVE')`, f.laundry)
	db.DB.MustExec(`INSERT INTO laundry_pricing (laundry_id, service_category_id, clothing_item_id, price, price_unit)
		VALUES ($1, 'wash', 'shirt', 120, 'PER_PIECE')`, f.laundry)
	db.DB.MustExec(`INSERT INTO promo_codes (id, code, discount_type, discount_value, valid_from, valid_until, usage_limit)
		VALUES ($1, 'WELCOME50', 'PERCENTAGE', 50, $2, $3, 1)`, f.promoID, f.baseTime.Add(-time.Hour), f.baseTime.Add(time.Hour))

	return f
}

func (f *fixture) newOrder(number string) *models.Order {
	return &models.Order{
		ID:                 models.NewID(),
		OrderNumber:        number,
		CustomerID:         "customer-1",
		LaundryID:          f.laundry,
		OrderType:          models.OrderTypeStandard,
		PickupType:         models.PickupTypeRider,
		Status:             models.StatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		PaymentMethod:      models.PaymentMethodCashOnDelivery,
		Subtotal:           decimal.NewFromInt(240),
		DeliveryFee:        decimal.NewFromInt(100),
		ExpressFee:         decimal.Zero,
		Discount:           decimal.NewFromInt(40),
		PickupAddress:      "12 Mall Road",
		DeliveryAddress:    "12 Mall Road",
		ExpectedDeliveryAt: f.baseTime.Add(48 * time.Hour),
		CreatedAt:          f.baseTime,
		UpdatedAt:          f.baseTime,
	}
}

func TestCreateOrderTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.newOrder("ORD-20260501-0001")

	err := f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		latest, err := tx.LatestOrderNumber(ctx, "ORD-20260501-")
		require.NoError(t, err)
		assert.Empty(t, latest)

		require.NoError(t, tx.InsertOrder(ctx, order))
		require.NoError(t, tx.InsertItems(ctx, []*models.OrderItem{{
			ID: models.NewID(), OrderID: order.ID, ServiceCategoryID: "wash", ClothingItemID: "shirt",
			PriceUnit: models.PriceUnitPiece, Quantity: 2, UnitPrice: decimal.NewFromInt(120),
			TotalPrice: decimal.NewFromInt(240), CreatedAt: f.baseTime,
		}}))
		require.NoError(t, tx.InsertPayment(ctx, &models.Payment{
			ID: models.NewID(), OrderID: order.ID, Amount: order.TotalAmount,
			Method: order.PaymentMethod, Status: models.PaymentStatusPending,
			CreatedAt: f.baseTime, UpdatedAt: f.baseTime,
		}))
		require.NoError(t, tx.AppendTimeline(ctx, &models.TimelineEntry{
			ID: models.NewID(), OrderID: order.ID, Event: "PENDING", Title: "Order Placed",
			Description: "placed", Icon: "receipt", CreatedAt: f.baseTime,
		}))
		require.NoError(t, tx.AppendHistory(ctx, &models.StatusHistoryEntry{
			ID: models.NewID(), OrderID: order.ID, ToStatus: models.StatusPending,
			ChangedBy: order.CustomerID, ActorRole: models.RoleCustomer, CreatedAt: f.baseTime,
		}))
		require.NoError(t, tx.IncrementPromoUsage(ctx, f.promoID))

		msg, err := models.NewOrderCreatedEvent(order, f.baseTime)
		require.NoError(t, err)
		return tx.EnqueueOutbox(ctx, msg)
	})
	require.NoError(t, err)
	assert.Equal(t, "300", order.TotalAmount.String())

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260501-0001", stored.OrderNumber)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(300)))

	items, err := f.orders.ListItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	history, err := f.orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)

	pending, err := f.outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.EventOrderCreated, pending[0].EventType)

	promo, err := f.promos.FindPromoByCode(ctx, "WELCOME50")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsedCount)

	err = f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.IncrementPromoUsage(ctx, f.promoID)
	})
	assert.ErrorIs(t, err, ErrPromoLimitReached)

	err = f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		latest, err := tx.LatestOrderNumber(ctx, "ORD-20260501-")
		require.NoError(t, err)
		assert.Equal(t, "ORD-20260501-0001", latest)
		return tx.InsertOrder(ctx, f.newOrder("ORD-20260501-0001"))
	})
	assert.ErrorIs(t, err, ErrDuplicateOrderNumber)
}

func TestConditionalStatusUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.newOrder("ORD-20260501-0007")

	require.NoError(t, f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertOrder(ctx, order)
	}))

	accepted := f.baseTime.Add(time.Minute)
	order.Status = models.StatusAccepted
	order.AcceptedAt = &accepted
	order.UpdatedAt = accepted

	require.NoError(t, f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateStatus(ctx, order, models.StatusPending)
	}))

	err := f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateStatus(ctx, order, models.StatusPending)
	})
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.newOrder("ORD-20260501-0009")
	boom := errors.New("boom")

	err := f.tx.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertOrder(ctx, order))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = f.orders.GetByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogLookups(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	laundry, err := f.catalog.FindLaundry(ctx, f.laundry)
	require.NoError(t, err)
	assert.True(t, laundry.ExpressMultiplier.Equal(decimal.NewFromFloat(1.5)))

	entry, err := f.catalog.FindPricing(ctx, f.laundry, "wash", "shirt")
	require.NoError(t, err)
	assert.False(t, entry.ExpressPrice.Valid)

	_, err = f.catalog.FindPricing(ctx, f.laundry, "wash", "saree")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeadLetterLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	msg, err := models.NewOutboxMessage(models.AggregateOrder, "order-1", models.EventOrderCreated, map[string]string{"k": "v"}, f.baseTime)
	require.NoError(t, err)
	require.NoError(t, f.outbox.Create(ctx, msg))

	dl := models.NewDeadLetterMessage(msg, "broker down", "max retries", f.baseTime)
	require.NoError(t, f.dlq.Create(ctx, dl))

	require.NoError(t, f.dlq.MarkAsDiscarded(ctx, dl.ID, "manual"))
	require.NoError(t, f.dlq.Requeue(ctx, dl.ID))

	pending, err := f.dlq.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].FailureReason, "Discarded: manual")

	require.NoError(t, f.dlq.MarkAsRetrying(ctx, dl.ID))
	assert.ErrorIs(t, f.dlq.MarkAsRetrying(ctx, dl.ID), ErrConflict)
	require.NoError(t, f.dlq.MarkAsResolved(ctx, dl.ID))

	assert.ErrorIs(t, f.dlq.MarkAsDiscarded(ctx, dl.ID, "too late"), ErrConflict)
	assert.ErrorIs(t, f.dlq.Requeue(ctx, dl.ID), ErrNotFound)

	listed, err := f.dlq.List(ctx, models.DeadLetterStatusResolved, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 1, listed[0].RetryCount)
}
