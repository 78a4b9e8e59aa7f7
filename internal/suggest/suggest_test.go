package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"seo", "digital marketing", "ai"}, SplitList(" seo, digital marketing ,,ai, "))
	assert.Empty(t, SplitList(""))
}

func TestCleanHashtag(t *testing.T) {
	tests := map[string]string{
		"#SEOAudit":         "#SEOAudit",
		"SEO Audit":         "#SEOAudit",
		"##Double":          "#Double",
		"  # Spaced Tag ":   "#SpacedTag",
		"#":                 "",
		"   ":               "",
		"#Digital Strategy": "#DigitalStrategy",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanHashtag(in), "input %q", in)
	}
}

func TestCleanHashtags_CapsAtTwenty(t *testing.T) {
	var tags []string
	for i := range 30 {
		tags = append(tags, fmt.Sprintf("tag %d", i))
	}
	tags = append([]string{"", "#"}, tags...)

	got := CleanHashtags(tags)
	require.Len(t, got, MaxHashtags)
	assert.Equal(t, "#tag0", got[0])
	assert.Equal(t, "#tag19", got[19])
}

func TestManual(t *testing.T) {
	m := NewManual([]string{"digital marketing", "SEO audit"})
	ctx := context.Background()

	kws, err := m.Keywords(ctx, "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"digital marketing", "SEO audit"}, kws)

	tags, err := m.Hashtags(ctx, kws, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"#DigitalMarketing", "#SEOAudit"}, tags)

	trending := make([]string, 25)
	for i := range trending {
		trending[i] = fmt.Sprintf("#t%d", i)
	}
	assert.Len(t, m.SelectTop(ctx, trending, nil, ""), MaxHashtags)
}

type chatServer struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	status  int
}

func (s *chatServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		assert.Zero(t, body.Temperature)

		s.mu.Lock()
		if len(body.Messages) > 0 {
			s.prompts = append(s.prompts, body.Messages[0].Content)
		}
		status, reply := s.status, s.reply
		s.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"upstream unavailable","type":"server_error"}}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}
}

func newTestLLM(t *testing.T, s *chatServer) *LLM {
	t.Helper()
	server := httptest.NewServer(s.handler(t))
	t.Cleanup(server.Close)

	noRetries := 0
	llm, err := NewLLM(LLMConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL + "/",
		Model:      "test-model",
		MaxRetries: &noRetries,
	}, quietLogger())
	require.NoError(t, err)
	return llm
}

func TestNewLLM_RequiresKey(t *testing.T) {
	_, err := NewLLM(LLMConfig{}, quietLogger())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLLM_Keywords(t *testing.T) {
	s := &chatServer{reply: "cloud computing, AI solutions , , cybersecurity"}
	llm := newTestLLM(t, s)

	kws, err := llm.Keywords(context.Background(), "We build secure cloud platforms.")
	require.NoError(t, err)
	assert.Equal(t, []string{"cloud computing", "AI solutions", "cybersecurity"}, kws)

	require.Len(t, s.prompts, 1)
	assert.Contains(t, s.prompts[0], "We build secure cloud platforms.")
}

func TestLLM_HashtagsAreCleaned(t *testing.T) {
	s := &chatServer{reply: "#CloudComputing, AI Solutions, ##Cyber Security"}
	llm := newTestLLM(t, s)

	tags, err := llm.Hashtags(context.Background(), []string{"cloud", "ai"}, "content")
	require.NoError(t, err)
	assert.Equal(t, []string{"#CloudComputing", "#AISolutions", "#CyberSecurity"}, tags)
	assert.Contains(t, s.prompts[0], "cloud, ai")
}

func TestLLM_ErrorsPropagate(t *testing.T) {
	s := &chatServer{status: http.StatusServiceUnavailable}
	llm := newTestLLM(t, s)

	_, err := llm.Keywords(context.Background(), "content")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "keyword extraction failed"))
}

func TestLLM_SelectTopFallsBackToTrending(t *testing.T) {
	s := &chatServer{status: http.StatusInternalServerError}
	llm := newTestLLM(t, s)

	trending := make([]string, 22)
	for i := range trending {
		trending[i] = fmt.Sprintf("#t%d", i)
	}
	got := llm.SelectTop(context.Background(), trending, []string{"kw"}, "content")
	assert.Equal(t, trending[:MaxHashtags], got)
}

func TestLLM_SelectTop(t *testing.T) {
	s := &chatServer{reply: "#AI, #Cloud"}
	llm := newTestLLM(t, s)

	got := llm.SelectTop(context.Background(), []string{"#Cloud", "#AI", "#Other"}, []string{"kw"}, "content")
	assert.Equal(t, []string{"#AI", "#Cloud"}, got)
	assert.Contains(t, s.prompts[0], "#Cloud, #AI, #Other")

	assert.Nil(t, llm.SelectTop(context.Background(), nil, nil, ""))
	assert.Len(t, s.prompts, 1)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short"))
	long := strings.Repeat("é", maxContentRunes+10)
	assert.Equal(t, maxContentRunes, len([]rune(clip(long))))
}
