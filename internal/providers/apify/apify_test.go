package apify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeApify struct {
	t          *testing.T
	runStatus  string
	polls      atomic.Int32
	finalState string

	mu        sync.Mutex
	lastInput map[string]any

	// items overrides the dataset body when set.
	items []any
}

func (f *fakeApify) input() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}

func (f *fakeApify) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v2/acts/{actor}/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(f.t, "apify~google-search-scraper", r.PathValue("actor"))
		assert.NotEmpty(f.t, r.URL.Query().Get("waitForFinish"))

		var input map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&input))
		f.mu.Lock()
		f.lastInput = input
		f.mu.Unlock()
		writeJSON(w, map[string]any{"data": map[string]any{
			"id": "run-1", "status": f.runStatus, "defaultDatasetId": "ds-1",
		}})
	})

	mux.HandleFunc("GET /v2/actor-runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.polls.Add(1)
		writeJSON(w, map[string]any{"data": map[string]any{
			"id": r.PathValue("id"), "status": f.finalState, "defaultDatasetId": "ds-1",
		}})
	})

	mux.HandleFunc("GET /v2/datasets/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "ds-1", r.PathValue("id"))
		assert.Equal(f.t, "true", r.URL.Query().Get("clean"))
		if f.items != nil {
			writeJSON(w, f.items)
			return
		}
		writeJSON(w, []map[string]any{
			{"organicResults": []any{map[string]any{"title": "Top #AI and #MachineLearning trends"}}},
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(serverURL string) *Client {
	return NewClient("test-token",
		WithBaseURL(serverURL),
		WithHTTPClient(http.DefaultClient),
		WithPollInterval(time.Millisecond),
	)
}

func TestActorProvider_InvokeAndFetch(t *testing.T) {
	fake := &fakeApify{t: t, runStatus: StatusSucceeded, finalState: StatusSucceeded}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	p := NewActorProvider("apify-web", newTestClient(server.URL), GoogleSearch)
	handle, err := p.Invoke(context.Background(), quietLogger(), "#AI")
	require.NoError(t, err)

	assert.Equal(t, "apify-web", handle.Provider)
	assert.Equal(t, "run-1", handle.RunID)
	assert.Equal(t, "ds-1", handle.DatasetID)
	assert.Equal(t, int32(0), fake.polls.Load())

	input := fake.input()
	assert.Equal(t, "trending hashtags for AI", input["queries"])
	assert.Equal(t, float64(1), input["maxPagesPerQuery"])
	assert.Equal(t, "en", input["languageCode"])
	assert.Equal(t, false, input["mobileResults"])
	assert.Equal(t, true, input["includeUnfilteredResults"])

	items, err := p.Fetch(context.Background(), quietLogger(), handle)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], "organicResults")
}

func TestActorProvider_PollsUntilTerminal(t *testing.T) {
	fake := &fakeApify{t: t, runStatus: StatusRunning, finalState: StatusSucceeded}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	p := NewActorProvider("apify-web", newTestClient(server.URL), GoogleSearch)
	handle, err := p.Invoke(context.Background(), quietLogger(), "#AI")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, handle.Status)
	assert.Equal(t, int32(1), fake.polls.Load())
}

func TestActorProvider_FailedRun(t *testing.T) {
	fake := &fakeApify{t: t, runStatus: StatusRunning, finalState: StatusFailed}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	p := NewActorProvider("apify-web", newTestClient(server.URL), GoogleSearch)
	_, err := p.Invoke(context.Background(), quietLogger(), "#AI")
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrRunFailed))
}

func TestClient_StatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"error": map[string]any{"type": "invalid-input", "message": "queries is required"}})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).StartRun(context.Background(), quietLogger(), "x~y", map[string]any{})
	require.Error(t, err)

	var statusErr *providers.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "queries is required")
}

func TestClient_DatasetItemsSkipsNonObjects(t *testing.T) {
	fake := &fakeApify{t: t, items: []any{
		"stray string",
		map[string]any{"hashtags": []any{"AI"}},
		nil,
		[]any{1, 2},
		map[string]any{"text": "#ML"},
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	items, err := newTestClient(server.URL).DatasetItems(context.Background(), quietLogger(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"hashtags": []any{"AI"}},
		{"text": "#ML"},
	}, items)
}

func TestClient_MissingToken(t *testing.T) {
	c := NewClient("", WithHTTPClient(http.DefaultClient))
	assert.False(t, c.HasToken())

	_, err := c.DatasetItems(context.Background(), quietLogger(), "ds-1")
	assert.ErrorIs(t, err, providers.ErrMissingToken)
}

func TestWaitForRun_RespectsMaxWait(t *testing.T) {
	fake := &fakeApify{t: t, runStatus: StatusRunning, finalState: StatusRunning}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := NewClient("test-token",
		WithBaseURL(server.URL),
		WithHTTPClient(http.DefaultClient),
		WithPollInterval(5*time.Millisecond),
		WithMaxRunWait(50*time.Millisecond),
	)

	_, err := c.WaitForRun(context.Background(), quietLogger(), &Run{ID: "run-1", Status: StatusRunning})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestActorSpec_BuildInput(t *testing.T) {
	in := TweetScraper.BuildInput("#AI")
	assert.Equal(t, []string{"#AI"}, in["searchTerms"])
	assert.Equal(t, 50, in["maxItems"])

	in = InstagramHashtag.BuildInput("#digital marketing")
	assert.Equal(t, []string{"digitalmarketing"}, in["hashtags"])

	// The shared template map is never mutated.
	_, leaked := GoogleSearch.Input["queries"]
	assert.False(t, leaked)
}

func TestActorProvider_FetchWithoutDataset(t *testing.T) {
	p := NewActorProvider("apify-web", NewClient("t", WithHTTPClient(http.DefaultClient)), GoogleSearch)
	_, err := p.Fetch(context.Background(), quietLogger(), &providers.RunHandle{})
	assert.ErrorIs(t, err, providers.ErrEmptyHandle)
}
