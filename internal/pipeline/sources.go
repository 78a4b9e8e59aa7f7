// Package pipeline wires configuration, providers, the aggregator and the adapters into the
// hashtag generation flows exposed by the tools and CLI.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/config"
	"github.com/seo-tools/trendtags/internal/hashtags/extract"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/providers/apify"
	"github.com/seo-tools/trendtags/internal/providers/brave"
	"github.com/seo-tools/trendtags/internal/providers/duckduckgo"
	"github.com/seo-tools/trendtags/internal/providers/searxng"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

// ErrNoProviders means no trending source is enabled, usually because APIFY_API_TOKEN is unset.
var ErrNoProviders = fmt.Errorf("no trending providers configured (set APIFY_API_TOKEN or define providers.yaml): %w", providers.ErrMissingToken)

// BuildSources turns the enabled provider specs into aggregator sources. A provider whose
// credentials are missing is an error wrapping providers.ErrMissingToken.
func BuildSources(cfg config.Config, logger *logrus.Logger) ([]aggregate.Source, error) {
	specs := cfg.EnabledProviders()
	if len(specs) == 0 {
		return nil, ErrNoProviders
	}

	apifyClients := make(map[string]*apify.Client)
	sources := make([]aggregate.Source, 0, len(specs))

	for _, spec := range specs {
		profile, err := extract.ProfileByName(spec.Profile)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", spec.Name, err)
		}

		provider, err := buildProvider(cfg, spec, apifyClients)
		if err != nil {
			return nil, err
		}

		weight := spec.Weight
		if weight == 0 {
			weight = aggregate.DefaultWeight(profile)
		}

		logger.WithFields(logrus.Fields{
			"provider": spec.Name,
			"kind":     spec.Kind,
			"profile":  profile.Name(),
			"weight":   weight,
		}).Debug("Configured trending provider")

		sources = append(sources, aggregate.Source{Provider: provider, Profile: profile, Weight: weight})
	}
	return sources, nil
}

func buildProvider(cfg config.Config, spec config.ProviderSpec, apifyClients map[string]*apify.Client) (providers.Provider, error) {
	switch spec.Kind {
	case config.KindApify:
		if cfg.ApifyToken == "" {
			return nil, fmt.Errorf("provider %q: APIFY_API_TOKEN: %w", spec.Name, providers.ErrMissingToken)
		}
		actor, err := spec.ActorSpec()
		if err != nil {
			return nil, err
		}

		baseURL := cfg.ApifyBaseURL
		if spec.Endpoint != "" {
			baseURL = spec.Endpoint
		}
		client, ok := apifyClients[baseURL]
		if !ok {
			client = apify.NewClient(cfg.ApifyToken, apify.WithBaseURL(baseURL))
			apifyClients[baseURL] = client
		}
		return apify.NewActorProvider(spec.Name, client, actor), nil

	case config.KindBrave:
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("provider %q: BRAVE_API_KEY: %w", spec.Name, providers.ErrMissingToken)
		}
		opts := []brave.Option{
			brave.WithHTTPClient(httpclient.NewRateLimitedHTTPClient(nil, brave.DefaultTimeout, cfg.RateLimit)),
			brave.WithBaseURL(spec.Endpoint),
		}
		if spec.QueryTemplate != "" {
			opts = append(opts, brave.WithQueryTemplate(spec.QueryTemplate))
		}
		return brave.NewProvider(cfg.BraveAPIKey, opts...), nil

	case config.KindSearXNG:
		baseURL := cfg.SearXNG.BaseURL
		if spec.Endpoint != "" {
			baseURL = spec.Endpoint
		}
		p, err := searxng.NewProvider(searxng.Config{
			BaseURL:       baseURL,
			Username:      cfg.SearXNG.Username,
			Password:      cfg.SearXNG.Password,
			QueryTemplate: spec.QueryTemplate,
			HTTPClient:    httpclient.NewRateLimitedHTTPClient(nil, searxng.DefaultTimeout, cfg.RateLimit),
		})
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", spec.Name, err)
		}
		return p, nil

	case config.KindDuckDuckGo:
		client := httpclient.NewRateLimitedHTTPClient(nil, duckduckgo.DefaultTimeout, cfg.RateLimit)
		return duckduckgo.NewProvider(spec.Endpoint, spec.QueryTemplate, client), nil
	}
	return nil, fmt.Errorf("provider %q: unknown kind %q", spec.Name, spec.Kind)
}

// AggregateConfig maps the runtime configuration onto an aggregator configuration.
func AggregateConfig(cfg config.Config, sources []aggregate.Source) aggregate.Config {
	return aggregate.Config{
		Sources:     sources,
		Retry:       cfg.RetryPolicy(),
		TopN:        cfg.TopN,
		Mode:        cfg.Mode,
		Workers:     cfg.Workers,
		CallTimeout: cfg.CallTimeout,
		CaseFold:    cfg.CaseFold,
	}
}

// NewAggregator builds sources from cfg, wraps them with the result cache when c is not nil,
// and returns a ready aggregator.
func NewAggregator(cfg config.Config, c *cache.FileCache, logger *logrus.Logger, opts ...providers.RetryOption) (*aggregate.Aggregator, error) {
	sources, err := BuildSources(cfg, logger)
	if err != nil {
		return nil, err
	}
	if c != nil {
		for i := range sources {
			sources[i].Provider = NewCachedProvider(sources[i].Provider, c, cfg.CacheTTL)
		}
	}

	agg, err := aggregate.New(AggregateConfig(cfg, sources), logger, opts...)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// IsConfigurationError reports whether err stems from missing credentials or providers.
func IsConfigurationError(err error) bool {
	return errors.Is(err, providers.ErrMissingToken)
}
