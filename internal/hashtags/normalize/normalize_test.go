package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_PlainStrings(t *testing.T) {
	assert.Equal(t, "SEO", Normalize("  SEO  "))
	assert.Equal(t, "#MachineLearning", Normalize("#MachineLearning"))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "", Normalize(nil))
}

func TestNormalize_RecordFieldPriority(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"title wins", map[string]any{"text": "b", "title": "a"}, "a"},
		{"blank title skipped", map[string]any{"title": "  ", "text": "body"}, "body"},
		{"non-string skipped", map[string]any{"title": 12, "query": "q text"}, "q text"},
		{"searchQuery", map[string]any{"searchQuery": "ai tools"}, "ai tools"},
		{"snippet", map[string]any{"snippet": " short "}, "short"},
		{"name", map[string]any{"name": "Growth Hacking"}, "Growth Hacking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.record))
		})
	}
}

func TestNormalize_RecordURL(t *testing.T) {
	assert.Equal(t, "digital marketing",
		Normalize(map[string]any{"url": "https://www.google.com/search?q=digital+marketing&hl=en"}))
	assert.Equal(t, "content marketing tips",
		Normalize(map[string]any{"url": "https://example.com/content-marketing_tips/"}))
}

func TestNormalize_RecordFallsBackToStringForm(t *testing.T) {
	assert.Equal(t, `{"foo":1}`, Normalize(map[string]any{"foo": 1}))
	assert.Equal(t, `{"url":"https://example.com/"}`, Normalize(map[string]any{"url": "https://example.com/"}))
}

func TestNormalize_StringMapRecord(t *testing.T) {
	assert.Equal(t, "from string map", Normalize(map[string]string{"text": "from string map"}))
}

func TestNormalize_EncodedRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json", `{"title": "SEO Basics", "url": "https://x.test"}`, "SEO Basics"},
		{"single quoted", `{'title': 'Top SEO tips', 'url': 'https://google.com/search?q=seo'}`, "Top SEO tips"},
		{"single quoted url only", `{'url': 'https://google.com/search?q=local+seo'}`, "local seo"},
		{"regex title fallback", `{"title": "Content Marketing" "extra"`, "Content Marketing"},
		{"regex q fallback", `{"url": https://www.google.com/search?q=digital+marketing&hl=en`, "digital marketing"},
		{"unparseable kept", `{not: a [record`, `{not: a [record`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_BraceWithoutColonIsPlainText(t *testing.T) {
	assert.Equal(t, "{braces only}", Normalize(" {braces only} "))
}

func TestNormalize_OtherTypes(t *testing.T) {
	assert.Equal(t, "42", Normalize(42))
	assert.Equal(t, "true", Normalize(true))
}

func TestQueries_DedupeIsCaseSensitiveAndOrdered(t *testing.T) {
	got := Queries([]any{"#SEO", "#seo", "#SEO", "#Marketing"}, Options{})
	assert.Equal(t, []string{"#SEO", "#seo", "#Marketing"}, got)
}

func TestQueries_DropsEmptyAndDuplicatesAfterNormalisation(t *testing.T) {
	got := Queries([]any{" SEO ", "SEO", "", map[string]any{"title": "SEO"}, nil, "Ads"}, Options{})
	assert.Equal(t, []string{"SEO", "Ads"}, got)
}

func TestQueries_HashtagOnly(t *testing.T) {
	items := []any{"#AI", "keyword", map[string]any{"title": "#Record"}, " #Spaced", "#AI", "#Cloud"}
	got := Queries(items, Options{HashtagOnly: true})
	assert.Equal(t, []string{"#AI", "#Cloud"}, got)
}

func TestQueries_Empty(t *testing.T) {
	assert.Empty(t, Queries(nil, Options{}))
}

func TestSearchPhrase(t *testing.T) {
	assert.Equal(t, "AI", SearchPhrase("#AI"))
	assert.Equal(t, "Machine Learning", SearchPhrase("##Machine Learning "))
	assert.Equal(t, "plain", SearchPhrase("plain"))
}
