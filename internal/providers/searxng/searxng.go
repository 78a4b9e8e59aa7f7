// Package searxng queries a SearXNG instance as a web-search provider.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout for HTTP requests
const DefaultTimeout = 30 * time.Second

// Response represents the response from the SearXNG JSON API.
type Response struct {
	Results     []Result `json:"results"`
	Suggestions []string `json:"suggestions"`
}

// Result represents a single search result from SearXNG
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Provider searches a SearXNG instance.
type Provider struct {
	baseURL       string
	username      string
	password      string
	language      string
	timeRange     string
	queryTemplate string
	client        httpclient.HTTPClientInterface
}

// Config holds the SearXNG connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// Language is a SearXNG language code; empty searches all languages.
	Language string

	// TimeRange is one of day, month or year; empty means any time.
	TimeRange string

	// QueryTemplate renders each query; see providers.RenderQuery.
	QueryTemplate string

	HTTPClient httpclient.HTTPClientInterface
}

// NewProvider creates a SearXNG provider. It returns an error for a missing or non-http(s) base URL.
func NewProvider(cfg Config) (*Provider, error) {
	parsedURL, err := url.Parse(cfg.BaseURL)
	if cfg.BaseURL == "" || err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid SearXNG base URL %q", cfg.BaseURL)
	}

	p := &Provider{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		language:      cfg.Language,
		queryTemplate: cfg.QueryTemplate,
		client:        cfg.HTTPClient,
	}
	switch cfg.TimeRange {
	case "day", "month", "year":
		p.timeRange = cfg.TimeRange
	}
	if p.queryTemplate == "" {
		p.queryTemplate = "{phrase} hashtags"
	}
	if p.client == nil {
		p.client = httpclient.NewRateLimitedHTTPClient(nil, DefaultTimeout, httpclient.RateLimitFromEnv())
	}
	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "searxng"
}

// Invoke searches for query. Suggestions become related queries so their hashtags count too.
func (p *Provider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*providers.RunHandle, error) {
	term := providers.RenderQuery(p.queryTemplate, query)

	resp, err := p.search(ctx, logger, term)
	if err != nil {
		return nil, err
	}

	hits := make([]providers.OrganicResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, providers.OrganicResult{Title: r.Title, URL: r.URL, Description: r.Content})
	}

	payload := providers.WebSearchPayload(term, hits)
	if len(resp.Suggestions) > 0 {
		related := make([]any, 0, len(resp.Suggestions))
		for _, s := range resp.Suggestions {
			related = append(related, map[string]any{"title": s})
		}
		payload["relatedQueries"] = related
	}

	logger.WithFields(logrus.Fields{
		"query":        term,
		"result_count": len(hits),
		"provider":     p.Name(),
	}).Debug("SearXNG search completed")

	return providers.InlineHandle(p.Name(), payload), nil
}

// Fetch returns the results carried by handle.
func (p *Provider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	return providers.InlineFetch(ctx, logger, handle)
}

func (p *Provider) search(ctx context.Context, logger *logrus.Logger, term string) (*Response, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("format", "json")
	params.Set("pageno", "1")
	params.Set("categories", "general")
	params.Set("safesearch", "0")
	if p.timeRange != "" {
		params.Set("time_range", p.timeRange)
	}
	if p.language != "" && p.language != "all" {
		params.Set("language", p.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.username != "" && p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}
	req.Header.Set("User-Agent", "trendtags/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewStatusError("searxng", resp.StatusCode, string(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}
