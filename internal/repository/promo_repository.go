package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// PromoRepository reads promo codes. Usage is only incremented through a Tx.
type PromoRepository struct {
	db     *database.Database
	logger logger.Logger
}

func NewPromoRepository(db *database.Database, logger logger.Logger) *PromoRepository {
	return &PromoRepository{db: db, logger: logger}
}

// FindPromoByCode looks a code up exactly; callers normalize it first
func (r *PromoRepository) FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `
		SELECT id, code, discount_type, discount_value, max_discount, min_order_amount,
			   valid_from, valid_until, usage_limit, used_count, first_order_only, is_active,
			   applicable_laundry_ids, created_at
		FROM promo_codes
		WHERE code = $1
	`

	var promo models.PromoCode
	err := r.db.DB.GetContext(ctx, &promo, query, code)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get promo code", "error", err, "code", code)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &promo, nil
}

// IncrementPromoUsage bumps used_count unless the usage limit is already reached
func (t *sqlTx) IncrementPromoUsage(ctx context.Context, promoID string) error {
	query := `
		UPDATE promo_codes SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`

	rows, err := t.exec(ctx, query, promoID)

	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPromoLimitReached
	}

	return nil
}
