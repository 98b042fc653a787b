package repository

import (
	"context"
	"errors"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/cache"
)

// CacheSnapshot keeps the last successfully fetched price history per
// stock so cycles can degrade to it when the provider is down.
type CacheSnapshot struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheSnapshot(c cache.Service, ttl time.Duration) *CacheSnapshot {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &CacheSnapshot{cache: c, ttl: ttl}
}

func snapshotKey(stockID string) string { return cache.GenerateKey("snapshot:history", stockID) }

func (s *CacheSnapshot) PutHistory(ctx context.Context, stockID string, points []*models.PricePoint) error {
	return s.cache.Set(ctx, snapshotKey(stockID), points, s.ttl)
}

func (s *CacheSnapshot) GetHistory(ctx context.Context, stockID string) ([]*models.PricePoint, bool, error) {
	var points []*models.PricePoint
	err := s.cache.Get(ctx, snapshotKey(stockID), &points)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return points, true, nil
}
