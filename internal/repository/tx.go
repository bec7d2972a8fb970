package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// Tx is the set of writes that only exist inside a unit of work. Timeline and
// history entries can be appended but never updated or deleted.
type Tx interface {
	LatestOrderNumber(ctx context.Context, prefix string) (string, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertItems(ctx context.Context, items []*models.OrderItem) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
	AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error
	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	UpdateStatus(ctx context.Context, order *models.Order, expected models.OrderStatus) error
	CompletePayment(ctx context.Context, orderID string, at time.Time) error
	RefreshLaundryCompletedOrders(ctx context.Context, laundryID string) error
	IncrementPromoUsage(ctx context.Context, promoID string) error
	EnqueueOutbox(ctx context.Context, message *models.OutboxMessage) error
}

// UnitOfWork runs fn in a transaction, committing when fn returns nil
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// TxManager is the Postgres UnitOfWork
type TxManager struct {
	db     *database.Database
	logger logger.Logger
}

func NewTxManager(db *database.Database, logger logger.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// WithTx begins a transaction, runs fn and commits. Any error rolls back.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := m.db.BeginTx(ctx)

	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabase, err)
	}

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}

	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)

	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return rows, nil
}
