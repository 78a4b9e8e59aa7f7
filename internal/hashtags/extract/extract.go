// Package extract pulls hashtag tokens out of opaque provider payloads.
//
// Each provider family shapes its results differently, so extraction is driven by a
// Profile that knows which surfaces of a result may carry hashtags. Payload access is
// defensive throughout: missing or wrongly-typed fields are skipped, never fatal.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches '#' followed by one or more word characters (letters, marks, digits, underscore).
var tokenPattern = regexp.MustCompile(`#[\p{L}\p{M}\p{N}_]+`)

// Result is one record of a provider result-set.
type Result = map[string]any

// Profile extracts hashtag tokens from a single result.
type Profile interface {
	// Name identifies the profile in configuration.
	Name() string
	// Tokens returns every hashtag occurrence in discovery order, duplicates included.
	Tokens(result Result) []string
}

// Profiles returns the built-in extraction profiles keyed by name.
func Profiles() map[string]Profile {
	return map[string]Profile{
		WebSearch.Name():    WebSearch,
		Microblog.Name():    Microblog,
		PhotoNetwork.Name(): PhotoNetwork,
	}
}

// ProfileByName resolves a profile name from configuration.
func ProfileByName(name string) (Profile, error) {
	p, ok := Profiles()[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown extraction profile: %q", name)
	}
	return p, nil
}

// Tokens returns all hashtag tokens found in s.
func Tokens(s string) []string {
	return tokenPattern.FindAllString(s, -1)
}

// Extract returns the distinct tokens of one result in first-discovery order.
func Extract(profile Profile, result Result) []string {
	return distinct(profile.Tokens(result))
}

// ExtractAll returns the distinct tokens across a whole result-set in first-discovery order.
func ExtractAll(profile Profile, results []Result) []string {
	var all []string
	for _, r := range results {
		all = append(all, profile.Tokens(r)...)
	}
	return distinct(all)
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// stringField returns m[key] when it is a string.
func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// listField returns m[key] when it is a list.
func listField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, r := range v {
			out[i] = r
		}
		return out
	default:
		return nil
	}
}

// mapField returns m[key] when it is a record.
func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}
