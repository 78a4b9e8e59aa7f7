// Package brave queries the Brave Search API as a web-search provider.
package brave

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// APIBaseURL is the base URL for Brave Search API
	APIBaseURL = "https://api.search.brave.com/res/v1"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultCount is the number of results requested per query.
	DefaultCount = 20

	userAgent = "trendtags/1.0"
)

// WebSearchResponse is the subset of the Brave web search response used for extraction.
type WebSearchResponse struct {
	Type string `json:"type"`
	Web  *struct {
		Results []WebResult `json:"results"`
	} `json:"web,omitempty"`
}

// WebResult is a single Brave web search hit.
type WebResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	ExtraSnippets []string `json:"extra_snippets,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   *struct {
		Detail string `json:"detail"`
	} `json:"error,omitempty"`
}

// Provider searches Brave and returns results in the web-search payload shape.
type Provider struct {
	apiKey        string
	baseURL       string
	count         int
	queryTemplate string
	httpClient    httpclient.HTTPClientInterface
}

// Option customises a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the rate-limited default client.
func WithHTTPClient(client httpclient.HTTPClientInterface) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithQueryTemplate sets the template rendering each query (see providers.RenderQuery).
func WithQueryTemplate(template string) Option {
	return func(p *Provider) {
		p.queryTemplate = template
	}
}

// WithCount sets the number of results per query (1–20).
func WithCount(count int) Option {
	return func(p *Provider) {
		p.count = min(max(count, 1), 20)
	}
}

// NewProvider creates a Brave provider. It returns nil when apiKey is empty.
func NewProvider(apiKey string, opts ...Option) *Provider {
	if apiKey == "" {
		return nil
	}
	p := &Provider{
		apiKey:        apiKey,
		baseURL:       APIBaseURL,
		count:         DefaultCount,
		queryTemplate: "{phrase} hashtags",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = httpclient.NewRateLimitedHTTPClient(nil, DefaultTimeout, httpclient.RateLimitFromEnv())
	}
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "brave"
}

// Invoke runs a web search for query. Brave answers synchronously, so the handle carries the results.
func (p *Provider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*providers.RunHandle, error) {
	term := providers.RenderQuery(p.queryTemplate, query)
	resp, err := p.webSearch(ctx, logger, term)
	if err != nil {
		return nil, err
	}

	var hits []providers.OrganicResult
	if resp.Web != nil {
		for _, r := range resp.Web.Results {
			desc := r.Description
			if len(r.ExtraSnippets) > 0 {
				desc += " " + strings.Join(r.ExtraSnippets, " ")
			}
			hits = append(hits, providers.OrganicResult{Title: r.Title, URL: r.URL, Description: desc})
		}
	}

	return providers.InlineHandle(p.Name(), providers.WebSearchPayload(term, hits)), nil
}

// Fetch returns the results carried by handle.
func (p *Provider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	return providers.InlineFetch(ctx, logger, handle)
}

func (p *Provider) webSearch(ctx context.Context, logger *logrus.Logger, term string) (*WebSearchResponse, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("count", strconv.Itoa(p.count))
	params.Set("extra_snippets", "true")

	body, err := p.makeRequest(ctx, logger, "/web/search", params)
	if err != nil {
		return nil, err
	}

	var response WebSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse web search response: %w", err)
	}
	return &response, nil
}

func (p *Provider) makeRequest(ctx context.Context, logger *logrus.Logger, endpoint string, params url.Values) ([]byte, error) {
	reqURL := p.baseURL + endpoint + "?" + params.Encode()

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"query":    params.Get("q"),
	}).Debug("Making Brave API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Subscription-Token", p.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() {
			if closeErr := gzipReader.Close(); closeErr != nil {
				logger.WithError(closeErr).Warn("Failed to close gzip reader")
			}
		}()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errorResp errorResponse
		if json.Unmarshal(body, &errorResp) == nil {
			switch {
			case errorResp.Message != "":
				msg = errorResp.Message
			case errorResp.Error != nil && errorResp.Error.Detail != "":
				msg = errorResp.Error.Detail
			}
		}
		return nil, providers.NewStatusError("brave", resp.StatusCode, msg)
	}

	logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"response_size": len(body),
	}).Debug("Brave API request successful")

	return body, nil
}
