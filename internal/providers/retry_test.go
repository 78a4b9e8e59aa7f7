package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	fetchErr  error
	results   []Result
	panicOn   bool
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*RunHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.panicOn {
		panic("boom")
	}
	if p.calls <= p.failFirst {
		return nil, errors.New("temporary failure")
	}
	return &RunHandle{Provider: p.Name(), RunID: "run-1", DatasetID: "ds-1"}, nil
}

func (p *scriptedProvider) Fetch(ctx context.Context, logger *logrus.Logger, handle *RunHandle) ([]Result, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.results, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseBackoff: 2 * time.Second}
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 2*time.Second, p.Backoff(0))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseBackoff)
}

func TestRetryingClient_SucceedsOnThirdAttemptAfterBackoff(t *testing.T) {
	base := 10 * time.Millisecond
	provider := &scriptedProvider{failFirst: 2}
	client := NewRetryingClient(RetryPolicy{MaxAttempts: 3, BaseBackoff: base}, newTestLogger())

	start := time.Now()
	handle, ok := client.Invoke(context.Background(), provider, "#AI")
	elapsed := time.Since(start)

	require.True(t, ok)
	require.NotNil(t, handle)
	assert.Equal(t, "ds-1", handle.DatasetID)
	assert.Equal(t, 3, provider.callCount())
	assert.GreaterOrEqual(t, elapsed, base*1+base*2)
}

func TestRetryingClient_RecordsBackoffSequence(t *testing.T) {
	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	provider := &scriptedProvider{failFirst: 10}
	client := NewRetryingClient(DefaultRetryPolicy(), newTestLogger(), WithSleep(sleep))

	handle, ok := client.Invoke(context.Background(), provider, "#AI")

	assert.False(t, ok)
	assert.Nil(t, handle)
	assert.Equal(t, 3, provider.callCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestRetryingClient_FirstAttemptSuccessDoesNotSleep(t *testing.T) {
	slept := false
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}
	provider := &scriptedProvider{}
	client := NewRetryingClient(DefaultRetryPolicy(), newTestLogger(), WithSleep(sleep))

	_, ok := client.Invoke(context.Background(), provider, "q")
	assert.True(t, ok)
	assert.False(t, slept)
	assert.Equal(t, 1, provider.callCount())
}

func TestRetryingClient_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{failFirst: 10}
	client := NewRetryingClient(RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Hour}, newTestLogger())

	start := time.Now()
	_, ok := client.Invoke(ctx, provider, "q")

	assert.False(t, ok)
	assert.Equal(t, 1, provider.callCount())
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryingClient_PanicIsTreatedAsFailure(t *testing.T) {
	provider := &scriptedProvider{panicOn: true}
	client := NewRetryingClient(RetryPolicy{MaxAttempts: 2}, newTestLogger())

	_, ok := client.Invoke(context.Background(), provider, "q")
	assert.False(t, ok)
	assert.Equal(t, 2, provider.callCount())
}

func TestRetryingClient_ZeroAttemptsStillTriesOnce(t *testing.T) {
	provider := &scriptedProvider{}
	client := NewRetryingClient(RetryPolicy{}, newTestLogger())

	_, ok := client.Invoke(context.Background(), provider, "q")
	assert.True(t, ok)
	assert.Equal(t, 1, provider.callCount())
}

func TestRetryingClient_Fetch(t *testing.T) {
	provider := &scriptedProvider{results: []Result{{"title": "#AI"}}}
	client := NewRetryingClient(DefaultRetryPolicy(), newTestLogger())

	results, ok := client.Fetch(context.Background(), provider, &RunHandle{DatasetID: "ds-1"})
	require.True(t, ok)
	assert.Len(t, results, 1)

	provider.fetchErr = errors.New("dataset gone")
	results, ok = client.Fetch(context.Background(), provider, &RunHandle{DatasetID: "ds-1"})
	assert.False(t, ok)
	assert.Nil(t, results)

	require.NotPanics(t, func() {
		results, ok = client.Fetch(context.Background(), provider, nil)
	})
	assert.False(t, ok)
	assert.Nil(t, results)
}

func TestRenderQuery(t *testing.T) {
	assert.Equal(t, "trending hashtags for AI", RenderQuery("trending hashtags for {phrase}", "#AI"))
	assert.Equal(t, "#AI", RenderQuery("{query}", "#AI"))
	assert.Equal(t, "#AI", RenderQuery("", "#AI"))
	assert.Equal(t, "digitalmarketing", RenderQuery("{tag}", "#digital marketing"))
}

func TestIsTransientAndClassify(t *testing.T) {
	assert.True(t, IsTransient(NewStatusError("apify", http.StatusTooManyRequests, "")))
	assert.True(t, IsTransient(NewStatusError("apify", http.StatusBadGateway, "")))
	assert.False(t, IsTransient(NewStatusError("apify", http.StatusUnauthorized, "")))
	assert.False(t, IsTransient(ErrMissingToken))
	assert.False(t, IsTransient(nil))

	assert.Equal(t, "auth", Classify(NewStatusError("apify", http.StatusForbidden, "")))
	assert.Equal(t, "rate_limit", Classify(NewStatusError("apify", http.StatusTooManyRequests, "")))
	assert.Equal(t, "timeout", Classify(context.DeadlineExceeded))
	assert.Equal(t, "run_failed", Classify(ErrRunFailed))
	assert.Equal(t, "none", Classify(nil))
}
