package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

const deadLetterColumns = `
	id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository handles database operations related to dead letter messages
type DeadLetterRepository struct {
	db     *database.Database
	logger logger.Logger
	now    func() time.Time
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *database.Database, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:     db,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// Create inserts a new dead letter message
func (r *DeadLetterRepository) Create(ctx context.Context, message *models.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, retry_count, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id
	`

	var id int64

	err := r.db.DB.QueryRowContext(
		ctx,
		query,
		message.OriginalMessageID,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.ErrorMessage,
		message.FailureReason,
		message.RetryCount,
		message.Status,
		message.CreatedAt,
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to create dead letter message", "error", err)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	message.ID = id
	return nil
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	query := `
		SELECT` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var messages []*models.DeadLetterMessage

	err := r.db.DB.SelectContext(
		ctx,
		&messages,
		query,
		string(models.DeadLetterStatusPending),
		limit,
	)

	if err != nil {
		r.logger.Error("Failed to get pending dead letter messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsRetrying claims a pending message for the re-driver. ErrConflict means
// another worker got there first.
func (r *DeadLetterRepository) MarkAsRetrying(ctx context.Context, id int64) error {
	return r.transition(ctx, id, models.DeadLetterStatusRetrying, `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3 AND status = $4
	`, string(models.DeadLetterStatusRetrying), r.now(), id, string(models.DeadLetterStatusPending))
}

// MarkAsResolved records a successful re-delivery
func (r *DeadLetterRepository) MarkAsResolved(ctx context.Context, id int64) error {
	return r.transition(ctx, id, models.DeadLetterStatusResolved, `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4
	`, string(models.DeadLetterStatusResolved), r.now(), id, string(models.DeadLetterStatusRetrying))
}

// MarkAsDiscarded parks a message for good, appending the reason to its history
func (r *DeadLetterRepository) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	return r.transition(ctx, id, models.DeadLetterStatusDiscarded, `
		UPDATE dead_letter_messages
		SET
			status = $1,
			failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::text),
			resolved_at = $3
		WHERE id = $4 AND status <> $5
	`, string(models.DeadLetterStatusDiscarded), reason, r.now(), id, string(models.DeadLetterStatusResolved))
}

func (r *DeadLetterRepository) transition(ctx context.Context, id int64, to models.DeadLetterStatus, query string, args ...interface{}) error {
	result, err := r.db.DB.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as "+string(to), "error", err, "messageID", id)
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

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	query := `
		SELECT` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE id = $1
	`

	var message models.DeadLetterMessage
	err := r.db.DB.GetContext(ctx, &message, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get dead letter message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

// List returns dead letters newest first, optionally filtered by status
func (r *DeadLetterRepository) List(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error) {
	query := `SELECT` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	messages := []*models.DeadLetterMessage{}
	err := r.db.DB.SelectContext(ctx, &messages, query, string(status), limit, offset)

	if err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// Requeue makes a discarded or stuck message eligible for the re-driver again
func (r *DeadLetterRepository) Requeue(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = NULL
		WHERE id = $2 AND status <> $3
	`

	result, err := r.db.DB.ExecContext(
		ctx,
		query,
		string(models.DeadLetterStatusPending),
		id,
		string(models.DeadLetterStatusResolved),
	)

	if err != nil {
		r.logger.Error("Failed to requeue dead letter message", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
