package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxAttempts is the number of invocation attempts per provider call.
	DefaultMaxAttempts = 3

	// DefaultBaseBackoff is the wait after the first failed attempt; later waits double.
	DefaultBaseBackoff = 2 * time.Second
)

// RetryPolicy bounds provider invocation retries.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff" json:"base_backoff"`
}

// DefaultRetryPolicy returns three attempts with a two second base backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseBackoff: DefaultBaseBackoff}
}

// Backoff returns the wait after the given failed attempt: base * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseBackoff * time.Duration(1<<(attempt-1))
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryingClient wraps provider calls with bounded retries and exponential backoff.
// Failures are logged and reported as "no result"; they are never returned to the caller.
type RetryingClient struct {
	policy         RetryPolicy
	logger         *logrus.Logger
	providerLogger *logrus.Logger
	sleep          SleepFunc
}

// RetryOption customises a RetryingClient.
type RetryOption func(*RetryingClient)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep SleepFunc) RetryOption {
	return func(c *RetryingClient) {
		c.sleep = sleep
	}
}

// WithProviderLogger routes provider-internal diagnostics to a separate logger so they
// can be silenced or redirected independently of the application log.
func WithProviderLogger(l *logrus.Logger) RetryOption {
	return func(c *RetryingClient) {
		c.providerLogger = l
	}
}

// NewRetryingClient creates a client applying policy to every provider call.
func NewRetryingClient(policy RetryPolicy, logger *logrus.Logger, opts ...RetryOption) *RetryingClient {
	c := &RetryingClient{
		policy:         policy,
		logger:         logger,
		providerLogger: logger,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the client's retry policy.
func (c *RetryingClient) Policy() RetryPolicy {
	return c.policy
}

// Invoke calls p for query, retrying failed attempts. ok is false once every attempt has failed
// or ctx is done.
func (c *RetryingClient) Invoke(ctx context.Context, p Provider, query string) (handle *RunHandle, ok bool) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameProviderInvoke,
		attribute.String(telemetry.AttrProviderName, p.Name()),
		attribute.String(telemetry.AttrProviderQuery, query),
	)

	start := time.Now()
	maxAttempts := c.policy.attempts()
	var lastErr error
	attempt := 0

	for attempt = 1; attempt <= maxAttempts; attempt++ {
		handle, lastErr = c.invokeOnce(ctx, p, query)
		if lastErr == nil {
			break
		}

		c.providerLogger.WithFields(logrus.Fields{
			"provider":  p.Name(),
			"query":     query,
			"attempt":   attempt,
			"transient": IsTransient(lastErr),
		}).WithError(lastErr).Debug("Provider attempt failed")

		if attempt == maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.policy.Backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	span.SetAttributes(attribute.Int(telemetry.AttrProviderAttempts, attempt))
	telemetry.RecordProviderCall(ctx, p.Name(), lastErr == nil, attempt, float64(time.Since(start).Milliseconds()))

	if lastErr != nil {
		telemetry.RecordProviderError(ctx, p.Name(), Classify(lastErr))
		c.logger.WithFields(logrus.Fields{
			"provider": p.Name(),
			"query":    query,
			"attempts": attempt,
		}).WithError(lastErr).Warn("Provider call failed, skipping query for this provider")
		telemetry.EndSpan(span, lastErr)
		return nil, false
	}

	telemetry.EndSpan(span, nil)
	return handle, true
}

// Fetch retrieves the results behind handle. A failed fetch is logged and ok is false.
func (c *RetryingClient) Fetch(ctx context.Context, p Provider, handle *RunHandle) (results []Result, ok bool) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameProviderFetch,
		attribute.String(telemetry.AttrProviderName, p.Name()),
	)

	results, err := c.fetchOnce(ctx, p, handle)
	telemetry.EndSpan(span, err)
	if err != nil {
		telemetry.RecordProviderError(ctx, p.Name(), Classify(err))
		fields := logrus.Fields{"provider": p.Name()}
		if handle != nil {
			fields["run_id"] = handle.RunID
			fields["dataset_id"] = handle.DatasetID
		}
		c.logger.WithFields(fields).WithError(err).Warn("Failed to read provider results")
		return nil, false
	}

	return results, true
}

func (c *RetryingClient) invokeOnce(ctx context.Context, p Provider, query string) (handle *RunHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()

	handle, err = p.Invoke(ctx, c.providerLogger, query)
	if err == nil && handle == nil {
		err = ErrEmptyHandle
	}
	return handle, err
}

func (c *RetryingClient) fetchOnce(ctx context.Context, p Provider, handle *RunHandle) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()

	if handle == nil {
		return nil, ErrEmptyHandle
	}
	return p.Fetch(ctx, c.providerLogger, handle)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
