package cache

import (
	"context"
	"time"

	"kiranapos/backend/internal/domain"
)

// SearchCache memoizes ranked catalog search results. Entries are short-lived
// so catalog edits become visible within the TTL.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]domain.CatalogHit, bool, error)
	Set(ctx context.Context, key string, hits []domain.CatalogHit, ttl time.Duration) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string) ([]domain.CatalogHit, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ []domain.CatalogHit, _ time.Duration) error {
	return nil
}
