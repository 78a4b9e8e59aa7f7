// Package apify runs Apify actors and reads their datasets.
package apify

import (
	"bytes"
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
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the Apify API root.
	DefaultBaseURL = "https://api.apify.com"

	// DefaultTimeout bounds a single HTTP request. Run starts block for up to WaitForFinish.
	DefaultTimeout = 90 * time.Second

	// DefaultWaitForFinish is how long, in seconds, Apify holds a run request open.
	DefaultWaitForFinish = 60

	// DefaultMaxRunWait bounds polling for a run that outlives WaitForFinish.
	DefaultMaxRunWait = 5 * time.Minute

	// DefaultRateLimit is requests per second against the Apify API.
	DefaultRateLimit = 10

	providerName = "apify"
	userAgent    = "trendtags/1.0"
)

// Run statuses reported by Apify.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborting  = "ABORTING"
	StatusAborted   = "ABORTED"
	StatusTimingOut = "TIMING-OUT"
	StatusTimedOut  = "TIMED-OUT"
)

// Run is the subset of an Apify actor run the providers need.
type Run struct {
	ID               string `json:"id"`
	ActID            string `json:"actId"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Terminal reports whether the run has stopped.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

type runEnvelope struct {
	Data Run `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Apify REST API.
type Client struct {
	baseURL       string
	token         string
	httpClient    httpclient.HTTPClientInterface
	waitForFinish int
	maxRunWait    time.Duration
	pollInterval  time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the rate-limited default HTTP client.
func WithHTTPClient(client httpclient.HTTPClientInterface) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithWaitForFinish sets the server-side wait per run request, in seconds (0–60).
func WithWaitForFinish(seconds int) Option {
	return func(c *Client) {
		c.waitForFinish = min(max(seconds, 0), 60)
	}
}

// WithMaxRunWait bounds how long WaitForRun polls.
func WithMaxRunWait(d time.Duration) Option {
	return func(c *Client) {
		c.maxRunWait = d
	}
}

// WithPollInterval sets the pause between run status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// NewClient creates an Apify client authenticated with token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		token:         token,
		waitForFinish: DefaultWaitForFinish,
		maxRunWait:    DefaultMaxRunWait,
		pollInterval:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewRateLimitedHTTPClient(nil, DefaultTimeout, DefaultRateLimit)
	}
	return c
}

// HasToken reports whether the client has credentials.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// StartRun starts actor with input and waits up to WaitForFinish seconds for it to finish.
func (c *Client) StartRun(ctx context.Context, logger *logrus.Logger, actor string, input map[string]any) (*Run, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actor input: %w", err)
	}

	params := url.Values{}
	params.Set("waitForFinish", strconv.Itoa(c.waitForFinish))
	endpoint := "/v2/acts/" + url.PathEscape(actor) + "/runs"

	var env runEnvelope
	if err := c.do(ctx, logger, http.MethodPost, endpoint, params, body, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// GetRun returns the current state of a run, waiting server-side for it to finish.
func (c *Client) GetRun(ctx context.Context, logger *logrus.Logger, runID string) (*Run, error) {
	params := url.Values{}
	params.Set("waitForFinish", strconv.Itoa(c.waitForFinish))

	var env runEnvelope
	if err := c.do(ctx, logger, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(runID), params, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// WaitForRun polls run until it reaches a terminal status, ctx is done or MaxRunWait elapses.
func (c *Client) WaitForRun(ctx context.Context, logger *logrus.Logger, run *Run) (*Run, error) {
	if run.Terminal() {
		return run, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.maxRunWait)
	defer cancel()

	current := run
	for !current.Terminal() {
		logger.WithFields(logrus.Fields{
			"run_id": current.ID,
			"status": current.Status,
		}).Debug("Waiting for Apify run")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for run %s: %w", current.ID, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		next, err := c.GetRun(ctx, logger, current.ID)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// DatasetItems returns every object item of a dataset as opaque records. Items that are not
// JSON objects are skipped.
func (c *Client) DatasetItems(ctx context.Context, logger *logrus.Logger, datasetID string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("clean", "true")
	params.Set("format", "json")

	var raw []any
	if err := c.do(ctx, logger, http.MethodGet, "/v2/datasets/"+url.PathEscape(datasetID)+"/items", params, nil, &raw); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	if skipped := len(raw) - len(items); skipped > 0 {
		logger.WithFields(logrus.Fields{
			"dataset_id": datasetID,
			"skipped":    skipped,
		}).Debug("Skipped non-object dataset items")
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, logger *logrus.Logger, method, endpoint string, params url.Values, body []byte, out any) error {
	if c.token == "" {
		return fmt.Errorf("%s: %w", providerName, providers.ErrMissingToken)
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.WithFields(logrus.Fields{
		"method": method,
		"url":    telemetry.SanitiseURL(reqURL),
	}).Debug("Making Apify API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apify request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var apiErr errorEnvelope
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"endpoint":    endpoint,
		}).Debug("Apify API request failed")
		return providers.NewStatusError(providerName, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse apify response: %w", err)
	}
	return nil
}
