package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

const insertOutboxQuery = `
	INSERT INTO outbox_messages (
		aggregate_type, aggregate_id, event_type, payload,
		created_at, status
	) VALUES (
		$1, $2, $3, $4, $5, $6
	) RETURNING id
`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
	now    func() time.Time
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// Create inserts a new outbox message outside any order transaction
func (r *OutboxRepository) Create(ctx context.Context, message *models.OutboxMessage) error {
	if err := insertOutbox(ctx, r.db.DB, message); err != nil {
		r.logger.Error("Failed to create outbox message", "error", err, "eventType", message.EventType)
		return err
	}
	return nil
}

// GetPendingMessages retrieves pending outbox messages oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
			   created_at, processed_at, processing_attempts, last_error, status
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage

	err := r.db.DB.SelectContext(
		ctx,
		&messages,
		query,
		models.OutboxStatusPending,
		limit,
	)

	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsProcessing claims a pending message and bumps its attempt counter.
// A message already claimed by another poller returns ErrConflict.
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2 AND status = $3
	`

	return r.update(ctx, "processing", id, query,
		models.OutboxStatusProcessing, id, models.OutboxStatusPending)
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	return r.update(ctx, "completed", id, query, models.OutboxStatusCompleted, r.now(), id)
}

// MarkAsPending returns a message to the queue after a failed attempt
func (r *OutboxRepository) MarkAsPending(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	return r.update(ctx, "pending", id, query, models.OutboxStatusPending, errorMessage, id)
}

// MarkAsFailed updates the status of an outbox message to failed
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	return r.update(ctx, "failed", id, query, models.OutboxStatusFailed, errorMessage, id)
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
			   created_at, processed_at, processing_attempts, last_error, status
		FROM outbox_messages
		WHERE id = $1
	`

	var message models.OutboxMessage

	err := r.db.DB.GetContext(ctx, &message, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

func (r *OutboxRepository) update(ctx context.Context, to string, id int64, query string, args ...interface{}) error {
	result, err := r.db.DB.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to mark outbox message as "+to, "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		return ErrConflict
	}

	return nil
}

// EnqueueOutbox writes a message in the same transaction as the order change it announces
func (t *sqlTx) EnqueueOutbox(ctx context.Context, message *models.OutboxMessage) error {
	return insertOutbox(ctx, t.tx, message)
}

func insertOutbox(ctx context.Context, q sqlx.QueryerContext, message *models.OutboxMessage) error {
	var id int64

	err := q.QueryRowxContext(
		ctx,
		insertOutboxQuery,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&id)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	message.ID = id
	return nil
}
