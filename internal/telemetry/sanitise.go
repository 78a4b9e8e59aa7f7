package telemetry

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

const (
	minTokenLength    = 20
	maxCacheKeyLength = 100
	redacted          = "[REDACTED]"
)

var (
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password|passwd|auth|authorization)[\s:=]+["']?([^\s"']+)`)

	sensitiveKeys = map[string]bool{
		"api_key":       true,
		"apikey":        true,
		"token":         true,
		"secret":        true,
		"password":      true,
		"auth":          true,
		"authorization": true,
		"access_token":  true,
		"credentials":   true,
	}
)

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return sensitiveKeys[k] ||
		strings.Contains(k, "key") ||
		strings.Contains(k, "token") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "password")
}

// SanitiseURL strips credentials and secret-looking query parameters, e.g. Apify's ?token=.
func SanitiseURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" {
		return "[INVALID_URL]"
	}

	parsedURL.User = nil
	if parsedURL.RawQuery != "" {
		query := parsedURL.Query()
		for key := range query {
			if isSensitiveKey(key) {
				query.Set(key, redacted)
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	return parsedURL.String()
}

// SanitiseArguments returns args as JSON with secret-looking values redacted.
func SanitiseArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	jsonBytes, err := json.Marshal(sanitiseMap(args))
	if err != nil {
		return `{"error": "failed to serialise arguments"}`
	}
	return string(jsonBytes)
}

func sanitiseMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	sanitised := make(map[string]any, len(m))
	for key, value := range m {
		if isSensitiveKey(key) {
			sanitised[key] = redacted
			continue
		}

		switch v := value.(type) {
		case map[string]any:
			sanitised[key] = sanitiseMap(v)
		case string:
			sanitised[key] = sanitiseString(v)
		default:
			sanitised[key] = value
		}
	}
	return sanitised
}

func sanitiseString(s string) string {
	if s == "" {
		return s
	}
	if apiKeyPattern.MatchString(s) {
		return apiKeyPattern.ReplaceAllString(s, "$1="+redacted)
	}
	if len(s) > minTokenLength && looksLikeToken(s) {
		return s[:4] + "..." + redacted
	}
	return s
}

func looksLikeToken(s string) bool {
	for _, char := range s {
		isValid := (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.'
		if !isValid {
			return false
		}
	}
	return true
}

// SanitiseCacheKey shortens cache keys and hides ones that look like they carry secrets.
func SanitiseCacheKey(key string) string {
	if key == "" {
		return ""
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
		if len(key) > 8 {
			return key[:4] + "..." + redacted
		}
		return redacted
	}
	return TruncateString(key, maxCacheKeyLength)
}

// TruncateString truncates a string to a maximum length with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
