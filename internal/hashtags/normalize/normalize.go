// Package normalize turns heterogeneous candidate items into clean search queries.
//
// Candidates arrive from LLM output, manual input or previous search results and may be
// plain strings, decoded records, records carrying a URL, or strings that encode a record.
// Normalisation never fails: anything that cannot be interpreted is stringified.
package normalize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// recordFields lists the record keys consulted for query text, in priority order.
var recordFields = []string{"title", "text", "query", "q", "searchQuery", "snippet", "name"}

var (
	titlePattern  = regexp.MustCompile(`(?:'|")?title(?:'|")?\s*:\s*(?:'|")([^'"]+)(?:'|")`)
	qParamPattern = regexp.MustCompile(`[?&]q=([^&\s]+)`)
)

// Options controls Queries.
type Options struct {
	// HashtagOnly keeps only string items whose original text begins with '#'.
	HashtagOnly bool
}

// Normalize converts a single candidate item into query text.
// The result may be empty; callers discard empty queries.
func Normalize(item any) string {
	switch v := item.(type) {
	case nil:
		return ""
	case string:
		return normalizeString(v)
	case map[string]any:
		return normalizeRecord(v)
	case map[string]string:
		record := make(map[string]any, len(v))
		for k, s := range v {
			record[k] = s
		}
		return normalizeRecord(record)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Queries normalises items into an ordered, duplicate-free query list.
// Duplicates are detected after normalisation using exact, case-sensitive comparison;
// the first occurrence wins.
func Queries(items []any, opts Options) []string {
	seen := make(map[string]struct{}, len(items))
	queries := make([]string, 0, len(items))

	for _, item := range items {
		if opts.HashtagOnly {
			s, ok := item.(string)
			if !ok || !strings.HasPrefix(s, "#") {
				continue
			}
		}

		q := strings.TrimSpace(Normalize(item))
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}

	return queries
}

// SearchPhrase strips leading '#' characters so a hashtag can be searched as a keyword.
func SearchPhrase(query string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(query), "#"))
}

func normalizeString(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "{") || !strings.Contains(s, ":") {
		return s
	}

	if record, ok := parseRecordLiteral(s); ok {
		return normalizeRecord(record)
	}

	if m := titlePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := qParamPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(unquotePlus(m[1]))
	}

	return s
}

// parseRecordLiteral decodes a string-encoded record without evaluating code.
// JSON is tried first; a YAML flow mapping covers single-quoted keys and values.
func parseRecordLiteral(s string) (map[string]any, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(s), &record); err == nil && record != nil {
		return record, true
	}

	record = nil
	if err := yaml.Unmarshal([]byte(s), &record); err == nil && record != nil {
		return record, true
	}

	return nil, false
}

func normalizeRecord(record map[string]any) string {
	for _, key := range recordFields {
		if s, ok := record[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	if raw, ok := record["url"].(string); ok {
		if q := queryFromURL(raw); q != "" {
			return q
		}
	}

	return stringifyRecord(record)
}

// queryFromURL returns the q parameter of a URL, or its path with separators turned into spaces.
func queryFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if values, err := url.ParseQuery(parsed.RawQuery); err == nil {
		if q := values.Get("q"); strings.TrimSpace(q) != "" {
			return strings.TrimSpace(q)
		}
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return ""
	}
	return strings.NewReplacer("-", " ", "_", " ").Replace(path)
}

func stringifyRecord(record map[string]any) string {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Sprint(record)
	}
	return string(data)
}

func unquotePlus(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}
