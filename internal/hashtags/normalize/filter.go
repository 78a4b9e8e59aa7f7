package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the shortest query FilterGeneric keeps.
const DefaultMinLength = 2

// GenericStopWords are dropped by FilterGeneric regardless of case.
var GenericStopWords = []string{"the", "a", "an", "and", "or", "to", "in", "on", "for", "with", "of"}

var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeText trims s and collapses internal whitespace runs to a single space.
func NormalizeText(s string) string {
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Texts normalises arbitrary items into whitespace-collapsed strings, skipping nil and empty results.
func Texts(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if t := NormalizeText(Normalize(item)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Dedupe removes exact duplicates, keeping the first occurrence of each string.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// FilterGeneric drops items shorter than minLen characters and items that are stop words.
// Stop words are matched case-insensitively; extra words are added to GenericStopWords.
func FilterGeneric(items []string, extraStopWords []string, minLen int) []string {
	stop := make(map[string]struct{}, len(GenericStopWords)+len(extraStopWords))
	for _, w := range GenericStopWords {
		stop[w] = struct{}{}
	}
	for _, w := range extraStopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		t := strings.TrimSpace(it)
		if utf8.RuneCountInString(t) < minLen {
			continue
		}
		if _, ok := stop[strings.ToLower(t)]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}
