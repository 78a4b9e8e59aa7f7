// Package trendtags exposes trending-hashtag aggregation, the SEO hashtag pipeline and run
// history as MCP tools.
package trendtags

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/config"
	"github.com/seo-tools/trendtags/internal/content"
	"github.com/seo-tools/trendtags/internal/history"
	"github.com/seo-tools/trendtags/internal/pipeline"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/suggest"
	"github.com/sirupsen/logrus"
)

// runtimeKey stores the shared Runtime in the registry cache.
const runtimeKey = "trendtags:runtime"

// ErrNoHistory is returned by history operations when the run history store is unavailable.
var ErrNoHistory = errors.New("run history is unavailable (check TRENDTAGS_HISTORY_DB)")

// Runtime holds the long-lived collaborators shared by the tools.
type Runtime struct {
	Config config.Config
	Cache  *cache.FileCache

	// Aggregator is nil when no provider is configured; AggregatorErr says why.
	Aggregator    *aggregate.Aggregator
	AggregatorErr error

	// History is nil when the store could not be opened.
	History *history.Store

	// Generator is nil without an LLM; callers then supply keywords.
	Generator suggest.Generator
	Content   content.Source

	RetryOptions []providers.RetryOption
	Logger       *logrus.Logger
}

// NewRuntime builds every collaborator from cfg. Missing provider credentials, an unusable history
// store and a missing LLM key degrade the runtime instead of failing it.
func NewRuntime(cfg config.Config, logger, providerLogger *logrus.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config:  cfg,
		Cache:   cache.New("trending", cfg.CachePath, cfg.CacheTTL, logger),
		Content: content.NewDefaultChain(logger),
		Logger:  logger,
	}
	if providerLogger != nil {
		rt.RetryOptions = append(rt.RetryOptions, providers.WithProviderLogger(providerLogger))
	}

	agg, err := pipeline.NewAggregator(cfg, rt.Cache, logger, rt.RetryOptions...)
	switch {
	case err == nil:
		rt.Aggregator = agg
	case pipeline.IsConfigurationError(err):
		logger.WithError(err).Warn("Trending providers not configured")
		rt.AggregatorErr = err
	default:
		return nil, fmt.Errorf("failed to configure trending providers: %w", err)
	}

	if cfg.HasLLM() {
		llm, err := suggest.NewLLM(suggest.LLMConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure LLM: %w", err)
		}
		rt.Generator = llm
	}

	store, err := history.Open(cfg.HistoryDB, logger)
	if err != nil {
		logger.WithError(err).Warn("Run history disabled")
	} else {
		rt.History = store
	}

	return rt, nil
}

// Pipeline returns a pipeline for one request. Without an LLM the supplied keywords become the
// candidate source and are required.
func (rt *Runtime) Pipeline(keywords []string) (*pipeline.Pipeline, error) {
	gen := rt.Generator
	if gen == nil {
		if len(keywords) == 0 {
			return nil, fmt.Errorf("keywords are required when no LLM is configured: %w", suggest.ErrNotConfigured)
		}
		gen = suggest.NewManual(keywords)
	}

	deps := pipeline.Deps{
		Content:    rt.Content,
		Generator:  gen,
		Aggregator: rt.Aggregator,
		History:    rt.History,
		Logger:     rt.Logger,
	}
	return pipeline.New(deps), nil
}

// Close releases the history store.
func (rt *Runtime) Close() error {
	if rt.History == nil {
		return nil
	}
	return rt.History.Close()
}

// Install makes rt the runtime used by every tool sharing store.
func Install(store *sync.Map, rt *Runtime) {
	store.Store(runtimeKey, rt)
}

// Shutdown closes the installed runtime, if any.
func Shutdown(store *sync.Map, logger *logrus.Logger) {
	if store == nil {
		return
	}
	v, ok := store.LoadAndDelete(runtimeKey)
	if !ok {
		return
	}
	if err := v.(*Runtime).Close(); err != nil {
		logger.WithError(err).Warn("Failed to close run history")
	}
}

// runtimeFrom returns the installed runtime or builds one from the environment.
func runtimeFrom(store *sync.Map, logger *logrus.Logger) (*Runtime, error) {
	if v, ok := store.Load(runtimeKey); ok {
		return v.(*Runtime), nil
	}

	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	rt, err := NewRuntime(cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	actual, loaded := store.LoadOrStore(runtimeKey, rt)
	if loaded {
		if err := rt.Close(); err != nil {
			logger.WithError(err).Debug("Failed to close duplicate runtime")
		}
	}
	return actual.(*Runtime), nil
}
