package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-backoffice/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const overrideCacheKey = "go-backoffice::endpoint_overrides::v1"

// CachedOverrideStore serves Load from cache and invalidates it on Save.
type CachedOverrideStore struct {
	base  core.OverrideStore
	cache repositorycache.CacheService
}

func NewCachedOverrideStore(base core.OverrideStore, cacheService repositorycache.CacheService) (*CachedOverrideStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base override store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: override cache service is required")
	}
	return &CachedOverrideStore{base: base, cache: cacheService}, nil
}

func (s *CachedOverrideStore) Load(ctx context.Context) (map[core.OperationKey]string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached override store is not configured")
	}
	overrides, err := repositorycache.GetOrFetch(ctx, s.cache, overrideCacheKey, func(ctx context.Context) (map[core.OperationKey]string, error) {
		fetched, fetchErr := s.base.Load(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneOverrides(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneOverrides(overrides), nil
}

func (s *CachedOverrideStore) Save(ctx context.Context, overrides map[core.OperationKey]string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached override store is not configured")
	}
	if err := s.base.Save(ctx, overrides); err != nil {
		return err
	}
	return s.cache.Delete(ctx, overrideCacheKey)
}

func cloneOverrides(source map[core.OperationKey]string) map[core.OperationKey]string {
	out := make(map[core.OperationKey]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}
