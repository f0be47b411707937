package downstream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
)

const defaultCacheTTL = 10 * time.Minute

// Options carries the optional collaborators of TenantClient and UserClient.
type Options struct {
	// Cache keeps snapshots of read entities; nil disables cached fallbacks.
	Cache    port.EntityCache
	CacheTTL time.Duration
	Policy   domain.DegradationPolicy
	Logger   *zap.Logger
}

// readCache serves cached snapshots when a lookup falls back and the policy allows it.
type readCache struct {
	cache  port.EntityCache
	ttl    time.Duration
	policy domain.DegradationPolicy
	logger *zap.Logger
}

func newReadCache(opts Options) readCache {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return readCache{cache: opts.Cache, ttl: ttl, policy: opts.Policy, logger: log}
}

func (r readCache) store(ctx context.Context, value any, keys ...string) {
	if r.cache == nil {
		return
	}
	for _, key := range keys {
		if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
			r.logger.Warn("failed to cache downstream entity", zap.String("key", key), zap.Error(err))
		}
	}
}

// recover fills dest from the cache when err is a read fallback the policy lets us paper over.
func (r readCache) recover(ctx context.Context, err error, key string, dest any) bool {
	if r.cache == nil {
		return false
	}
	svcErr, ok := domain.AsServiceError(err)
	if !ok || !svcErr.Fallback || !r.policy.AllowsCachedRead(svcErr.Reason) {
		return false
	}

	found, cacheErr := r.cache.Get(ctx, key, dest)
	if cacheErr != nil {
		r.logger.Warn("failed to read cached downstream entity", zap.String("key", key), zap.Error(cacheErr))
		return false
	}
	if found {
		r.logger.Info("serving cached entity while downstream is degraded",
			zap.String("key", key),
			zap.String("service", svcErr.Service),
			zap.String("reason", string(svcErr.Reason)),
		)
	}
	return found
}

func (r readCache) evict(ctx context.Context, keys ...string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("failed to evict cached downstream entity", zap.Strings("keys", keys), zap.Error(err))
	}
}
