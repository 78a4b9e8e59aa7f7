// Package suggest produces candidate keywords and hashtags for a page.
package suggest

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxHashtags caps every hashtag list returned by this package.
const MaxHashtags = 20

// Generator supplies keyword and hashtag candidates and can re-rank trending tags.
type Generator interface {
	Keywords(ctx context.Context, content string) ([]string, error)
	Hashtags(ctx context.Context, keywords []string, content string) ([]string, error)
	// SelectTop never fails; on error it returns the first MaxHashtags trending tags.
	SelectTop(ctx context.Context, trending, keywords []string, content string) []string
}

// SplitList splits comma-separated text into trimmed, non-empty items.
func SplitList(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanHashtag removes spaces and forces exactly one leading '#'. It returns "" for blank input.
func CleanHashtag(tag string) string {
	tag = strings.Join(strings.Fields(tag), "")
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// CleanHashtags applies CleanHashtag to a list, drops blanks and caps the result at MaxHashtags.
func CleanHashtags(tags []string) []string {
	out := make([]string, 0, min(len(tags), MaxHashtags))
	for _, t := range tags {
		if c := CleanHashtag(t); c != "" {
			out = append(out, c)
		}
		if len(out) == MaxHashtags {
			break
		}
	}
	return out
}

// Manual is the Generator used without a language model. Keywords are supplied by the
// caller and hashtags are their title-cased forms.
type Manual struct {
	keywords []string
}

// NewManual creates a Manual generator. keywords may be nil, in which case Keywords returns nothing.
func NewManual(keywords []string) *Manual {
	return &Manual{keywords: keywords}
}

// Keywords returns the configured keywords.
func (m *Manual) Keywords(_ context.Context, _ string) ([]string, error) {
	return append([]string(nil), m.keywords...), nil
}

// Hashtags turns each keyword into a CamelCase hashtag, e.g. "digital marketing" -> "#DigitalMarketing".
func (m *Manual) Hashtags(_ context.Context, keywords []string, _ string) ([]string, error) {
	title := cases.Title(language.English, cases.NoLower)
	tags := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		tags = append(tags, title.String(kw))
	}
	return CleanHashtags(tags), nil
}

// SelectTop returns the first MaxHashtags trending tags.
func (m *Manual) SelectTop(_ context.Context, trending, _ []string, _ string) []string {
	return firstN(trending, MaxHashtags)
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string(nil), items...)
}
