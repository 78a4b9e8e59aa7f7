package searxng

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seo-tools/trendtags/internal/hashtags/extract"
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

func TestNewProvider_ValidatesBaseURL(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.Error(t, err)

	_, err = NewProvider(Config{BaseURL: "ftp://search.local"})
	assert.Error(t, err)

	p, err := NewProvider(Config{BaseURL: "https://search.local/"})
	require.NoError(t, err)
	assert.Equal(t, "https://search.local", p.baseURL)
}

func TestProvider_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "trending hashtags for SEO", r.URL.Query().Get("q"))
		assert.Empty(t, r.URL.Query().Get("time_range"), "unsupported time ranges are dropped")

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)

		_ = json.NewEncoder(w).Encode(Response{
			Results:     []Result{{Title: "#SEO in 2025", Content: "Grow with #Marketing", URL: "https://x.example"}},
			Suggestions: []string{"#ContentMarketing ideas"},
		})
	}))
	defer server.Close()

	p, err := NewProvider(Config{
		BaseURL:       server.URL,
		Username:      "u",
		Password:      "p",
		TimeRange:     "week",
		QueryTemplate: "trending hashtags for {phrase}",
		HTTPClient:    server.Client(),
	})
	require.NoError(t, err)

	handle, err := p.Invoke(context.Background(), quietLogger(), "#SEO")
	require.NoError(t, err)
	results, err := p.Fetch(context.Background(), quietLogger(), handle)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []string{"#SEO", "#Marketing", "#ContentMarketing"}, extract.Extract(extract.WebSearch, results[0]))
}

func TestProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	p, err := NewProvider(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), quietLogger(), "#SEO")
	assert.Equal(t, "server", providers.Classify(err))
}
