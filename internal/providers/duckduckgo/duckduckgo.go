// Package duckduckgo scrapes the DuckDuckGo HTML endpoint as a keyless web-search provider.
package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultEndpoint is the HTML search form target.
	DefaultEndpoint = "https://html.duckduckgo.com/html"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResults caps the results kept per query.
	MaxResults = 30
)

// Provider searches DuckDuckGo. It needs no API key.
type Provider struct {
	endpoint      string
	queryTemplate string
	client        httpclient.HTTPClientInterface
}

// NewProvider creates a DuckDuckGo provider. Empty arguments select the defaults.
func NewProvider(endpoint, queryTemplate string, client httpclient.HTTPClientInterface) *Provider {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if queryTemplate == "" {
		queryTemplate = "{phrase} hashtags"
	}
	if client == nil {
		client = httpclient.NewRateLimitedHTTPClient(nil, DefaultTimeout, httpclient.RateLimitFromEnv())
	}
	return &Provider{endpoint: endpoint, queryTemplate: queryTemplate, client: client}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "duckduckgo"
}

// Invoke posts the search form and parses the result page.
func (p *Provider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*providers.RunHandle, error) {
	term := providers.RenderQuery(p.queryTemplate, query)

	formData := url.Values{}
	formData.Set("q", term)
	formData.Set("b", "")
	formData.Set("kl", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trendtags/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	// 202 is DuckDuckGo's rate limit response
	if resp.StatusCode == http.StatusAccepted {
		return nil, providers.NewStatusError(p.Name(), http.StatusTooManyRequests, "")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewStatusError(p.Name(), resp.StatusCode, "")
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML response: %w", err)
	}

	hits := parseResults(doc)
	logger.WithFields(logrus.Fields{
		"query":        term,
		"result_count": len(hits),
		"provider":     p.Name(),
	}).Debug("DuckDuckGo search completed")

	return providers.InlineHandle(p.Name(), providers.WebSearchPayload(term, hits)), nil
}

// Fetch returns the results carried by handle.
func (p *Provider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	return providers.InlineFetch(ctx, logger, handle)
}

func parseResults(doc *goquery.Document) []providers.OrganicResult {
	var hits []providers.OrganicResult
	doc.Find(".result").Each(func(i int, s *goquery.Selection) {
		if len(hits) >= MaxResults {
			return
		}

		titleElem := s.Find(".result__title a").First()
		title := strings.TrimSpace(titleElem.Text())
		link, exists := titleElem.Attr("href")
		if !exists || title == "" {
			return
		}

		// ads
		if strings.Contains(link, "y.js") {
			return
		}

		hits = append(hits, providers.OrganicResult{
			Title:       title,
			URL:         cleanRedirect(link),
			Description: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return hits
}

// cleanRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func cleanRedirect(link string) string {
	if !strings.HasPrefix(link, "//duckduckgo.com/l/?") {
		return link
	}
	parsed, err := url.Parse("https:" + link)
	if err != nil {
		return link
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}
