// Package cache holds the optional Redis read-through layer over catalog lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// CachedCatalog serves laundry and pricing reads from the cache and falls
// back to the underlying reader on a miss or on any cache failure.
type CachedCatalog struct {
	next   repository.CatalogReader
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedCatalog(next repository.CatalogReader, cache Cache, ttl time.Duration, logger logger.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) FindLaundry(ctx context.Context, id string) (*models.Laundry, error) {
	key := c.cache.GenerateKey("laundry", id)

	var laundry models.Laundry
	if c.load(ctx, key, &laundry) {
		return &laundry, nil
	}

	found, err := c.next.FindLaundry(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, found)
	return found, nil
}

func (c *CachedCatalog) FindPricing(ctx context.Context, laundryID, serviceCategoryID, clothingItemID string) (*models.PricingEntry, error) {
	key := c.cache.GenerateKey("pricing", laundryID, serviceCategoryID, clothingItemID)

	var entry models.PricingEntry
	if c.load(ctx, key, &entry) {
		return &entry, nil
	}

	found, err := c.next.FindPricing(ctx, laundryID, serviceCategoryID, clothingItemID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, found)
	return found, nil
}

// InvalidateLaundry drops the cached laundry so its completed order count is re-read
func (c *CachedCatalog) InvalidateLaundry(ctx context.Context, id string) {
	if err := c.cache.Delete(ctx, c.cache.GenerateKey("laundry", id)); err != nil {
		c.logger.Warn("Failed to invalidate cached laundry", "error", err, "laundryID", id)
	}
}

func (c *CachedCatalog) load(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Catalog cache read failed", "error", err, "key", key)
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", "error", err, "key", key)
		return false
	}

	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("Catalog cache write failed", "error", err, "key", key)
	}
}
