package infra

import (
	"context"
	"errors"

	"chassis/internal/config"
)

// ErrCacheMiss is returned by Cache.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the store surface shared by the cache backends. Entries expire
// after the configured TTL. The interface is available in every build,
// including ones compiled without a cache client; CacheStore reports the
// absence at runtime.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CacheStore returns the cache when the capability is registered.
func (r *Registry) CacheStore() (Cache, bool) {
	h, ok := r.Get(config.CapabilityCache)
	if !ok {
		return nil, false
	}
	store, ok := h.(Cache)
	if !ok {
		return nil, false
	}
	return store, true
}
