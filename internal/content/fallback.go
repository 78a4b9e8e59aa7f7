package content

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// FallbackTimeout bounds each fallback request.
	FallbackTimeout = 15 * time.Second

	// JinaBaseURL is the text proxy tried after direct fetches fail.
	JinaBaseURL = "https://r.jina.ai/"

	minUsefulLength = 50
	minBlockLength  = 200
)

// UserAgents are rotated across fallback attempts.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Linux; Android 12; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:116.0) Gecko/20100101 Firefox/116.0",
}

// Fallback retries with browser user agents and article extraction, then asks the Jina text proxy.
type Fallback struct {
	client      *http.Client
	logger      *logrus.Logger
	attempts    int
	pause       time.Duration
	jinaBaseURL string
}

// FallbackOption customises a Fallback.
type FallbackOption func(*Fallback)

// WithAttempts sets how many direct attempts are made before the proxy.
func WithAttempts(n int) FallbackOption {
	return func(f *Fallback) {
		f.attempts = max(n, 1)
	}
}

// WithAttemptPause sets the pause between direct attempts.
func WithAttemptPause(d time.Duration) FallbackOption {
	return func(f *Fallback) {
		f.pause = d
	}
}

// WithJinaBaseURL overrides the text proxy root. An empty value disables the proxy.
func WithJinaBaseURL(base string) FallbackOption {
	return func(f *Fallback) {
		f.jinaBaseURL = base
	}
}

// WithFallbackClient replaces the HTTP client.
func WithFallbackClient(client *http.Client) FallbackOption {
	return func(f *Fallback) {
		f.client = client
	}
}

// NewFallback creates the fallback scraper.
func NewFallback(logger *logrus.Logger, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		logger:      logger,
		attempts:    len(UserAgents),
		pause:       time.Second,
		jinaBaseURL: JinaBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = httpclient.NewHTTPClientWithProxyAndLogger(FallbackTimeout, logger)
	}
	return f
}

// Fetch implements Source. It returns "" without error when nothing useful was found.
func (f *Fallback) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := normaliseURL(rawURL, "http")
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= f.attempts; attempt++ {
		ua := UserAgents[(attempt-1)%len(UserAgents)]
		text, err := f.direct(ctx, target, ua)
		if err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"url":     target.String(),
				"attempt": attempt,
			}).Debug("Fallback attempt failed")
		}
		if len(text) > minUsefulLength {
			return text, nil
		}

		if attempt < f.attempts && f.pause > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.pause):
			}
		}
	}

	if f.jinaBaseURL == "" {
		return "", nil
	}
	text, err := f.viaProxy(ctx, target)
	if err != nil {
		f.logger.WithError(err).WithField("url", target.String()).Debug("Text proxy failed")
		return "", nil
	}
	return text, nil
}

func (f *Fallback) direct(ctx context.Context, target *url.URL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	body, err := readBody(f.logger, resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return readableText(body, resp.Request.URL)
}

func (f *Fallback) viaProxy(ctx context.Context, target *url.URL) (string, error) {
	proxyURL := strings.TrimSuffix(f.jinaBaseURL, "/") + "/http://" + target.Host + target.RequestURI()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch via proxy: %w", err)
	}
	body, err := readBody(f.logger, resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy HTTP error %d", resp.StatusCode)
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(body), ""))
	if len(text) <= minUsefulLength {
		return "", ErrNoContent
	}
	return text, nil
}

// readableText extracts the main text from an HTML page. Strategies in order: readability
// article, the largest div/main/section block, all paragraphs, the meta description, the title.
func readableText(body []byte, pageURL *url.URL) (string, error) {
	if !utf8.Valid(body) {
		body = []byte(strings.ToValidUTF8(string(body), ""))
	}

	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		if text := collapse(article.TextContent); len(text) > minUsefulLength {
			return text, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := collapse(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, iframe, header, footer, svg").Remove()

	if block := largestBlock(doc); len(block) > minBlockLength {
		return block, nil
	}
	if paragraphs := joinTexts(doc.Find("p"), "\n\n"); paragraphs != "" {
		return paragraphs, nil
	}

	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if desc, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
			return strings.TrimSpace(desc), nil
		}
	}
	return title, nil
}

func largestBlock(doc *goquery.Document) string {
	best := ""
	doc.Find("div, main, section").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); len(t) > len(best) {
			best = t
		}
	})
	return best
}
