package pipeline

import (
	"context"
	"fmt"

	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/dispatch"
	"github.com/seo-tools/trendtags/internal/hashtags/normalize"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/sirupsen/logrus"
)

// Collector fetches raw result-sets for a batch of candidates from one provider:
// normalise, drop generic and short items, dedupe, serve what the cache has, fetch the rest
// in parallel and cache the successes.
type Collector struct {
	provider providers.Provider
	client   *providers.RetryingClient
	cache    *cache.FileCache
	dispatch dispatch.Options
	minLen   int
	logger   *logrus.Logger
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	Cache    *cache.FileCache
	Retry    providers.RetryPolicy
	Dispatch dispatch.Options
	// MinLength drops shorter candidates; 0 selects normalize.DefaultMinLength.
	MinLength int
	// RetryOptions customise the retrying client.
	RetryOptions []providers.RetryOption
}

// NewCollector creates a Collector for provider.
func NewCollector(provider providers.Provider, opts CollectorOptions, logger *logrus.Logger) *Collector {
	minLen := opts.MinLength
	if minLen <= 0 {
		minLen = normalize.DefaultMinLength
	}
	return &Collector{
		provider: provider,
		client:   providers.NewRetryingClient(opts.Retry, logger, opts.RetryOptions...),
		cache:    opts.Cache,
		dispatch: opts.Dispatch,
		minLen:   minLen,
		logger:   logger,
	}
}

// Queries applies the candidate clean-up steps and returns the queries Collect would process.
func (c *Collector) Queries(items []any) []string {
	return normalize.Dedupe(normalize.FilterGeneric(normalize.Texts(items), nil, c.minLen))
}

// Collect returns a map holding every processed query. A query whose fetch failed maps to nil;
// a successful query with no results maps to an empty slice.
func (c *Collector) Collect(ctx context.Context, items []any) map[string][]providers.Result {
	queries := c.Queries(items)
	out := make(map[string][]providers.Result, len(queries))
	if len(queries) == 0 {
		return out
	}

	var misses []string
	for _, q := range queries {
		if c.cache != nil {
			if v, ok := cache.GetAs[[]providers.Result](c.cache, CacheKey(c.provider.Name(), q)); ok {
				out[q] = nonNilResults(v)
				continue
			}
		}
		misses = append(misses, q)
	}

	c.logger.WithFields(logrus.Fields{
		"provider": c.provider.Name(),
		"cached":   len(queries) - len(misses),
		"to_query": len(misses),
	}).Info("Collecting provider results")

	fresh := dispatch.FetchAll(ctx, c.logger, misses, c.dispatch, c.fetch)
	for _, q := range misses {
		items := fresh[q]
		out[q] = items
		if items == nil || c.cache == nil {
			continue
		}
		if err := c.cache.SetDefault(CacheKey(c.provider.Name(), q), items); err != nil {
			c.logger.WithError(err).WithField("query", q).Debug("Failed to cache result")
		}
	}
	return out
}

func (c *Collector) fetch(ctx context.Context, query string) ([]providers.Result, error) {
	handle, ok := c.client.Invoke(ctx, c.provider, query)
	if !ok {
		return nil, fmt.Errorf("provider %s failed for %q", c.provider.Name(), query)
	}
	items, ok := c.client.Fetch(ctx, c.provider, handle)
	if !ok {
		return nil, fmt.Errorf("fetching results from %s failed for %q", c.provider.Name(), query)
	}
	return nonNilResults(items), nil
}
