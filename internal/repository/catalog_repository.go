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

// CatalogReader is the read side of laundries and their price lists
type CatalogReader interface {
	FindLaundry(ctx context.Context, id string) (*models.Laundry, error)
	FindPricing(ctx context.Context, laundryID, serviceCategoryID, clothingItemID string) (*models.PricingEntry, error)
}

// CatalogRepository reads laundries and pricing from Postgres
type CatalogRepository struct {
	db     *database.Database
	logger logger.Logger
}

func NewCatalogRepository(db *database.Database, logger logger.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

func (r *CatalogRepository) FindLaundry(ctx context.Context, id string) (*models.Laundry, error) {
	query := `
		SELECT id, name, owner_id, status, free_pickup_delivery, express_multiplier,
			   completed_orders, updated_at
		FROM laundries
		WHERE id = $1
	`

	var laundry models.Laundry
	err := r.db.DB.GetContext(ctx, &laundry, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get laundry", "error", err, "laundryID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &laundry, nil
}

func (r *CatalogRepository) FindPricing(ctx context.Context, laundryID, serviceCategoryID, clothingItemID string) (*models.PricingEntry, error) {
	query := `
		SELECT laundry_id, service_category_id, clothing_item_id, price, express_price,
			   price_unit, is_active
		FROM laundry_pricing
		WHERE laundry_id = $1 AND service_category_id = $2 AND clothing_item_id = $3
	`

	var entry models.PricingEntry
	err := r.db.DB.GetContext(ctx, &entry, query, laundryID, serviceCategoryID, clothingItemID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get pricing", "error", err, "laundryID", laundryID,
			"serviceCategoryID", serviceCategoryID, "clothingItemID", clothingItemID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &entry, nil
}
