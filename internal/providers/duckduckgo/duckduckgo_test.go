package duckduckgo

import (
	"context"
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

const resultPage = `<html><body>
<div class="result">
  <h2 class="result__title"><a href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fblog.example%2Ftags&rut=x">Top #Travel hashtags</a></h2>
  <a class="result__snippet">Try #Wanderlust and #travel</a>
</div>
<div class="result">
  <h2 class="result__title"><a href="https://duckduckgo.com/y.js?ad=1">Sponsored #Ad</a></h2>
</div>
<div class="result">
  <h2 class="result__title"><a>No link</a></h2>
</div>
</body></html>`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestProvider_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "travel hashtags", r.PostForm.Get("q"))
		_, _ = io.WriteString(w, resultPage)
	}))
	defer server.Close()

	p := NewProvider(server.URL, "", server.Client())
	handle, err := p.Invoke(context.Background(), quietLogger(), "#travel")
	require.NoError(t, err)

	results, err := p.Fetch(context.Background(), quietLogger(), handle)
	require.NoError(t, err)
	require.Len(t, results, 1)

	organic := results[0]["organicResults"].([]any)
	require.Len(t, organic, 1)
	assert.Equal(t, "https://blog.example/tags", organic[0].(map[string]any)["url"])

	assert.Equal(t, []string{"#Travel", "#Wanderlust", "#travel"}, extract.Extract(extract.WebSearch, results[0]))
}

func TestProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p := NewProvider(server.URL, "", server.Client())
	_, err := p.Invoke(context.Background(), quietLogger(), "#travel")
	assert.Equal(t, "rate_limit", providers.Classify(err))
}

func TestCleanRedirect(t *testing.T) {
	assert.Equal(t, "https://a.example/x", cleanRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx"))
	assert.Equal(t, "https://b.example", cleanRedirect("https://b.example"))
	assert.Equal(t, "//duckduckgo.com/l/?foo=1", cleanRedirect("//duckduckgo.com/l/?foo=1"))
}
