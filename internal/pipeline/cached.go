package pipeline

import (
	"context"
	"time"

	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// StatusCached marks a handle whose results were served from the cache.
const StatusCached = "CACHED"

// CacheKey identifies one provider's result-set for one query.
func CacheKey(provider, query string) string {
	return provider + "|" + query
}

// CachedProvider serves result-sets from a FileCache and stores fresh ones.
// Invoke and Fetch stay separate steps: a cache miss invokes the inner provider once and
// its results are cached only after a successful Fetch.
type CachedProvider struct {
	inner providers.Provider
	cache *cache.FileCache
	ttl   time.Duration
}

// NewCachedProvider wraps inner. A nil cache returns inner unchanged.
func NewCachedProvider(inner providers.Provider, c *cache.FileCache, ttl time.Duration) providers.Provider {
	if c == nil {
		return inner
	}
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped provider's name.
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// Invoke returns an inline handle for cached results, otherwise the inner provider's handle
// tagged with query.
func (p *CachedProvider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*providers.RunHandle, error) {
	if items, ok := cache.GetAs[[]providers.Result](p.cache, CacheKey(p.inner.Name(), query)); ok {
		logger.WithFields(logrus.Fields{
			"provider": p.inner.Name(),
			"query":    query,
		}).Debug("Serving provider results from cache")
		handle := providers.InlineHandle(p.inner.Name(), items...)
		handle.Status = StatusCached
		handle.Query = query
		return handle, nil
	}

	handle, err := p.inner.Invoke(ctx, logger, query)
	if err != nil || handle == nil {
		return handle, err
	}
	handle.Query = query
	return handle, nil
}

// Fetch reads cached handles inline and everything else through the inner provider,
// caching successful result-sets.
func (p *CachedProvider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	if handle != nil && handle.Status == StatusCached {
		return providers.InlineFetch(ctx, logger, handle)
	}

	items, err := p.inner.Fetch(ctx, logger, handle)
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.Query == "" {
		return items, nil
	}

	key := CacheKey(p.inner.Name(), handle.Query)
	if err := p.cache.Set(key, nonNilResults(items), p.ttl); err != nil {
		logger.WithError(err).WithField("key", telemetry.SanitiseCacheKey(key)).Warn("Failed to cache provider results")
	}
	return items, nil
}

func nonNilResults(items []providers.Result) []providers.Result {
	if items == nil {
		return []providers.Result{}
	}
	return items
}
