package trendtags

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/config"
	"github.com/seo-tools/trendtags/internal/hashtags/extract"
	"github.com/seo-tools/trendtags/internal/history"
	"github.com/seo-tools/trendtags/internal/pipeline"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/suggest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type snippetProvider struct {
	name     string
	snippets map[string]string

	mu    sync.Mutex
	calls int
}

func (p *snippetProvider) Name() string { return p.name }

func (p *snippetProvider) Invoke(_ context.Context, _ *logrus.Logger, query string) (*providers.RunHandle, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	snippet, ok := p.snippets[query]
	if !ok {
		return nil, errors.New("unavailable")
	}
	return providers.InlineHandle(p.name, providers.Result{
		"organicResults": []any{map[string]any{"snippet": snippet}},
	}), nil
}

func (p *snippetProvider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	return providers.InlineFetch(ctx, logger, handle)
}

var testSnippets = map[string]string{
	"#AI":               "#AI #MachineLearning",
	"#MachineLearning":  "#MachineLearning #AI #DeepLearning",
	"#SEOAudit":         "#SEO #Audit",
	"#TechnicalSEO":     "#SEO #WebPerf",
	"content marketing": "#ContentMarketing",
}

func noSleep(context.Context, time.Duration) error { return nil }

// newTestRuntime installs a runtime backed by a stub provider and temp-dir state.
func newTestRuntime(t *testing.T, withProviders bool) (*sync.Map, *Runtime, *snippetProvider) {
	t.Helper()
	logger := quietLogger()
	dir := t.TempDir()

	store, err := history.Open(filepath.Join(dir, "history.db"), logger)
	require.NoError(t, err)

	rt := &Runtime{
		Config: config.Config{
			Retries:     1,
			Backoff:     time.Millisecond,
			Workers:     2,
			CallTimeout: time.Second,
		},
		Cache:        cache.New("trending", filepath.Join(dir, "cache.json"), time.Hour, logger),
		History:      store,
		RetryOptions: []providers.RetryOption{providers.WithSleep(noSleep)},
		Logger:       logger,
	}

	provider := &snippetProvider{name: "stub-web", snippets: testSnippets}
	if withProviders {
		cfg := aggregate.DefaultConfig()
		cfg.Sources = []aggregate.Source{{Provider: provider, Profile: extract.WebSearch, Weight: 1}}
		cfg.Retry = providers.RetryPolicy{MaxAttempts: 1, BaseBackoff: time.Millisecond}
		agg, err := aggregate.New(cfg, logger, rt.RetryOptions...)
		require.NoError(t, err)
		rt.Aggregator = agg
	} else {
		rt.AggregatorErr = pipeline.ErrNoProviders
	}

	m := &sync.Map{}
	Install(m, rt)
	t.Cleanup(func() { Shutdown(m, logger) })
	return m, rt, provider
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &v))
	return v
}

func TestTrendingTool_RanksCandidates(t *testing.T) {
	store, _, _ := newTestRuntime(t, true)
	tool := &TrendingTool{}

	res, err := tool.Execute(context.Background(), quietLogger(), store, map[string]any{
		"items": []any{"#AI", " #MachineLearning ", "#AI", "#Unknown"},
	})
	require.NoError(t, err)

	resp := decode[TrendingResponse](t, res)
	assert.Equal(t, []string{"#AI", "#MachineLearning", "#Unknown"}, resp.Queries)
	assert.Equal(t, []string{"#AI", "#MachineLearning", "#DeepLearning"}, resp.Top)
	assert.Equal(t, 3, resp.TotalUnique)
	assert.Equal(t, []string{"stub-web"}, resp.Providers)
	assert.Equal(t, aggregate.Ranked{Hashtag: "#AI", Weight: 2}, resp.Ranking[0])
}

func TestTrendingTool_Overrides(t *testing.T) {
	store, rt, _ := newTestRuntime(t, true)
	tool := &TrendingTool{}

	res, err := tool.Execute(context.Background(), quietLogger(), store, map[string]any{
		"items":        []any{"#AI", "content marketing"},
		"hashtag_only": true,
		"mode":         "parallel",
		"top_n":        float64(1),
	})
	require.NoError(t, err)

	resp := decode[TrendingResponse](t, res)
	assert.Equal(t, []string{"#AI"}, resp.Queries)
	assert.Equal(t, []string{"#AI"}, resp.Top)
	assert.Equal(t, aggregate.ModeSequential, rt.Aggregator.Config().Mode)
}

func TestTrendingTool_Errors(t *testing.T) {
	store, _, _ := newTestRuntime(t, false)
	tool := &TrendingTool{}
	ctx := context.Background()

	_, err := tool.Execute(ctx, quietLogger(), store, map[string]any{"items": []any{"#AI"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrMissingToken)
	assert.True(t, pipeline.IsConfigurationError(err))

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{})
	assert.ErrorContains(t, err, "items")

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"items": []any{"#AI"}, "mode": "burst"})
	assert.ErrorContains(t, err, "invalid aggregation mode")

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"items": []any{"#AI"}, "top_n": 1.5})
	assert.ErrorContains(t, err, "whole number")
}

func TestSEOTool_TopicWithKeywords(t *testing.T) {
	store, rt, _ := newTestRuntime(t, true)
	tool := &SEOTool{}
	output := filepath.Join(t.TempDir(), "runs", "result.json")

	res, err := tool.Execute(context.Background(), quietLogger(), store, map[string]any{
		"topic":    "enterprise seo",
		"keywords": []any{"SEO audit", "technical SEO"},
		"output":   output,
	})
	require.NoError(t, err)

	out := decode[pipeline.Result](t, res)
	assert.Equal(t, []string{"#SEOAudit", "#TechnicalSEO"}, out.GeneratedHashtags)
	assert.Equal(t, []string{"#SEOAudit", "#TechnicalSEO"}, out.Queries)
	assert.Equal(t, "#SEO", out.TrendingHashtags[0])
	assert.Empty(t, out.Warnings)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"apify_trending_hashtags"`)

	recs, err := rt.History.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.ID, recs[0].ID)
}

func TestSEOTool_Errors(t *testing.T) {
	store, _, _ := newTestRuntime(t, true)
	tool := &SEOTool{}
	ctx := context.Background()

	_, err := tool.Execute(ctx, quietLogger(), store, map[string]any{"topic": "seo"})
	assert.ErrorIs(t, err, suggest.ErrNotConfigured)

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"topic": "seo", "url": "https://example.com"})
	assert.ErrorIs(t, err, pipeline.ErrInvalidRequest)

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"topic": "seo", "keywords": "a, b", "select_top": "yes"})
	assert.ErrorContains(t, err, "select_top")
}

func TestSEOTool_DegradesWithoutProviders(t *testing.T) {
	store, _, _ := newTestRuntime(t, false)

	res, err := (&SEOTool{}).Execute(context.Background(), quietLogger(), store, map[string]any{
		"topic":    "ai",
		"keywords": "machine learning, ai",
	})
	require.NoError(t, err)

	out := decode[pipeline.Result](t, res)
	assert.Empty(t, out.TrendingHashtags)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "APIFY_API_TOKEN")
}

func TestHistoryTool(t *testing.T) {
	store, rt, _ := newTestRuntime(t, true)
	ctx := context.Background()
	tool := &HistoryTool{}

	saved, err := rt.History.Save(ctx, history.Record{Kind: "topic", Input: "cloud security", Hashtags: []string{"#CloudSecurity"}})
	require.NoError(t, err)
	_, err = rt.History.Save(ctx, history.Record{Kind: "url", Input: "https://example.com/recipes", Hashtags: []string{"#Baking"}})
	require.NoError(t, err)

	res, err := tool.Execute(ctx, quietLogger(), store, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, decode[[]history.Record](t, res), 2)

	res, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "search", "query": "cldsec"})
	require.NoError(t, err)
	found := decode[[]history.Record](t, res)
	require.Len(t, found, 1)
	assert.Equal(t, saved.ID, found[0].ID)

	res, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "get", "id": saved.ID})
	require.NoError(t, err)
	assert.Equal(t, "cloud security", decode[history.Record](t, res).Input)

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "delete", "id": saved.ID})
	require.NoError(t, err)
	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "get", "id": saved.ID})
	assert.ErrorIs(t, err, history.ErrNotFound)

	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "get"})
	assert.ErrorContains(t, err, "id")
	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{"action": "purge"})
	assert.ErrorContains(t, err, "unknown action")

	rt.History = nil
	_, err = tool.Execute(ctx, quietLogger(), store, map[string]any{})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestCollectTool(t *testing.T) {
	store, _, provider := newTestRuntime(t, false)
	tool := &CollectTool{
		sources: func(*Runtime, *logrus.Logger) ([]providers.Provider, error) {
			return []providers.Provider{provider}, nil
		},
	}
	args := map[string]any{"items": []any{"#AI", "the", "#AI", "#Missing"}}

	res, err := tool.Execute(context.Background(), quietLogger(), store, args)
	require.NoError(t, err)

	resp := decode[CollectResponse](t, res)
	assert.Equal(t, "stub-web", resp.Provider)
	assert.Equal(t, []string{"#AI", "#Missing"}, resp.Queries)
	assert.Len(t, resp.Results["#AI"], 1)
	assert.Nil(t, resp.Results["#Missing"])
	assert.Equal(t, 1, resp.Failed)

	before := provider.calls
	_, err = tool.Execute(context.Background(), quietLogger(), store, args)
	require.NoError(t, err)
	assert.Equal(t, before+1, provider.calls, "cached query is not fetched again")

	_, err = tool.Execute(context.Background(), quietLogger(), store, map[string]any{"items": []any{"#AI"}, "provider": "nope"})
	assert.ErrorContains(t, err, "stub-web")
}
