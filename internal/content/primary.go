package content

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// PrimaryTimeout bounds a single primary fetch.
	PrimaryTimeout = 10 * time.Second

	primaryUserAgent = "Mozilla/5.0"
)

// Primary issues one plain GET and keeps headings, paragraphs and the meta description.
type Primary struct {
	client *http.Client
	logger *logrus.Logger
}

// NewPrimary creates the primary scraper.
func NewPrimary(logger *logrus.Logger) *Primary {
	return &Primary{
		client: httpclient.NewHTTPClientWithProxyAndLogger(PrimaryTimeout, logger),
		logger: logger,
	}
}

// Fetch implements Source. A non-200 response is an error; a page without text returns "".
func (p *Primary) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := normaliseURL(rawURL, "https")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", primaryUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	body, err := readBody(p.logger, resp)
	if err != nil {
		return "", err
	}

	p.logger.WithFields(logrus.Fields{
		"url":         target.String(),
		"status_code": resp.StatusCode,
		"body_size":   len(body),
	}).Debug("Primary fetch complete")

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := summaryText(doc)
	if text == "" {
		p.logger.WithField("url", target.String()).Warn("No content extracted")
	}
	return text, nil
}

// summaryText joins heading text, paragraph text and the meta description.
func summaryText(doc *goquery.Document) string {
	headings := joinTexts(doc.Find("h1, h2, h3, h4, h5, h6"))
	paragraphs := joinTexts(doc.Find("p"))
	meta, _ := doc.Find(`meta[name="description"]`).First().Attr("content")

	parts := make([]string, 0, 3)
	for _, s := range []string{headings, paragraphs, strings.TrimSpace(meta)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func joinTexts(sel *goquery.Selection, sep ...string) string {
	joiner := " "
	if len(sep) > 0 {
		joiner = sep[0]
	}
	texts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			texts = append(texts, t)
		}
	})
	return strings.Join(texts, joiner)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
