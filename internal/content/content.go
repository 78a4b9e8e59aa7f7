// Package content fetches the readable text of a web page for keyword generation.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// MaxContentSize bounds how much of a response body is read.
const MaxContentSize = 5 * 1024 * 1024

// ErrNoContent is returned when a page was fetched but yielded no usable text.
var ErrNoContent = errors.New("no content extracted")

// Source returns the text of the page at rawURL.
type Source interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Chain tries each source in order and returns the first non-empty text.
// Failures are logged and never returned; an empty string means every source came up empty.
type Chain struct {
	sources []Source
	logger  *logrus.Logger
}

// NewChain builds a Chain over sources, skipping nil entries.
func NewChain(logger *logrus.Logger, sources ...Source) *Chain {
	c := &Chain{logger: logger}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// NewDefaultChain is the primary scraper followed by the fallback scraper.
func NewDefaultChain(logger *logrus.Logger) *Chain {
	return NewChain(logger, NewPrimary(logger), NewFallback(logger))
}

// Fetch implements Source.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameContentFetch,
		attribute.String("content.url", telemetry.SanitiseURL(rawURL)))
	defer telemetry.EndSpan(span, nil)

	for i, s := range c.sources {
		text, err := s.Fetch(ctx, rawURL)
		if err == nil && strings.TrimSpace(text) != "" {
			span.SetAttributes(attribute.Int("content.source_index", i), attribute.Int("content.length", len(text)))
			return text, nil
		}

		entry := c.logger.WithFields(logrus.Fields{
			"url":    rawURL,
			"source": fmt.Sprintf("%T", s),
		})
		if err != nil {
			entry.WithError(err).Warn("Content source failed, trying next")
		} else {
			entry.Warn("Content source returned no text, trying next")
		}

		if ctx.Err() != nil {
			break
		}
	}
	return "", nil
}

// normaliseURL prefixes a scheme when missing and rejects anything but http(s).
func normaliseURL(rawURL string, defaultScheme string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = defaultScheme + "://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}
	return parsed, nil
}

// readBody reads at most MaxContentSize bytes and closes the body.
func readBody(logger *logrus.Logger, resp *http.Response) ([]byte, error) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
