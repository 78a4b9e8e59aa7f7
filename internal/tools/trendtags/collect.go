package trendtags

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/dispatch"
	"github.com/seo-tools/trendtags/internal/pipeline"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

const collectToolName = "collect_search_results"

// CollectTool returns the raw provider result-sets for a batch of candidates, served from the
// result cache where possible.
type CollectTool struct {
	// sources overrides provider construction in tests.
	sources func(rt *Runtime, logger *logrus.Logger) ([]providers.Provider, error)
}

// CollectResponse is the output of collect_search_results. A query whose fetch failed maps to null.
type CollectResponse struct {
	Provider string                        `json:"provider"`
	Queries  []string                      `json:"queries"`
	Results  map[string][]providers.Result `json:"results"`
	Failed   int                           `json:"failed"`
}

func init() {
	registry.Register(&CollectTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *CollectTool) Definition() mcp.Tool {
	return mcp.NewTool(
		collectToolName,
		mcp.WithDescription(`Fetch raw search results for candidate keywords from one provider.

Candidates are normalised, generic words and very short items are dropped, duplicates removed, cached results reused and the rest fetched in parallel. Failed queries are returned as null.`),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description("Candidate keywords, hashtags or records"),
		),
		mcp.WithString("provider",
			mcp.Description("Provider name from providers.yaml (defaults to the first enabled provider)"),
		),
		mcp.WithNumber("min_length",
			mcp.Description("Drop candidates shorter than this (2, Optional)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute collects result-sets for every processed candidate.
func (t *CollectTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	items, err := itemsArg(args, "items")
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("invalid parameters: missing or invalid required parameter: items")
	}
	name, err := stringArg(args, "provider")
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	minLen, err := intArg(args, "min_length", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	rt, err := runtimeFrom(cache, logger)
	if err != nil {
		return nil, err
	}
	provider, err := t.provider(rt, name, logger)
	if err != nil {
		return nil, err
	}

	collector := pipeline.NewCollector(provider, pipeline.CollectorOptions{
		Cache: rt.Cache,
		Retry: rt.Config.RetryPolicy(),
		Dispatch: dispatch.Options{
			Workers:     rt.Config.Workers,
			CallTimeout: rt.Config.CallTimeout,
		},
		MinLength:    minLen,
		RetryOptions: rt.RetryOptions,
	}, logger)

	results := collector.Collect(ctx, items)
	resp := &CollectResponse{
		Provider: provider.Name(),
		Queries:  collector.Queries(items),
		Results:  results,
	}
	for _, v := range results {
		if v == nil {
			resp.Failed++
		}
	}
	return tools.NewToolResultJSON(resp)
}

func (t *CollectTool) provider(rt *Runtime, name string, logger *logrus.Logger) (providers.Provider, error) {
	build := t.sources
	if build == nil {
		build = configuredProviders
	}
	all, err := build(rt, logger)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return all[0], nil
	}

	names := make([]string, 0, len(all))
	for _, p := range all {
		if p.Name() == name {
			return p, nil
		}
		names = append(names, p.Name())
	}
	return nil, fmt.Errorf("unknown provider %q (configured: %s)", name, strings.Join(names, ", "))
}

func configuredProviders(rt *Runtime, logger *logrus.Logger) ([]providers.Provider, error) {
	sources, err := pipeline.BuildSources(rt.Config, logger)
	if err != nil {
		return nil, err
	}
	out := make([]providers.Provider, len(sources))
	for i, s := range sources {
		out[i] = s.Provider
	}
	return out, nil
}
