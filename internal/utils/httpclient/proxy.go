// Package httpclient builds the outbound HTTP clients shared by providers and content fetchers.
package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// ProxyEnvironmentVariables lists proxy variables in order of preference, following curl and wget.
var ProxyEnvironmentVariables = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// NewHTTPClientWithProxy creates an HTTP client honouring the proxy environment variables.
// The transport is OTEL-instrumented when tracing is enabled.
func NewHTTPClientWithProxy(timeout time.Duration) *http.Client {
	return NewHTTPClientWithProxyAndLogger(timeout, nil)
}

// NewHTTPClientWithProxyAndLogger is NewHTTPClientWithProxy with proxy configuration logged to logger.
func NewHTTPClientWithProxyAndLogger(timeout time.Duration, logger *logrus.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL := getProxyURL(); proxyURL != "" {
		parsedProxy, err := url.Parse(proxyURL)
		switch {
		case err == nil:
			transport.Proxy = http.ProxyURL(parsedProxy)
			if logger != nil {
				logger.WithField("proxy_url", redactProxyCredentials(proxyURL)).Debug("HTTP client configured with proxy")
			}
		case logger != nil:
			logger.WithError(err).WithField("proxy_url", redactProxyCredentials(proxyURL)).Warn("Failed to parse proxy URL, using direct connection")
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: telemetry.WrapHTTPTransport(transport),
	}
}

func getProxyURL() string {
	for _, envVar := range ProxyEnvironmentVariables {
		if proxyURL := os.Getenv(envVar); proxyURL != "" {
			// some shells leave the literal placeholder behind
			if proxyURL != "$HTTPS_PROXY" && proxyURL != "$HTTP_PROXY" {
				return proxyURL
			}
		}
	}
	return ""
}

func redactProxyCredentials(proxyURL string) string {
	if parsed, err := url.Parse(proxyURL); err == nil {
		if parsed.User != nil {
			parsed.User = url.UserPassword("***", "***")
		}
		return parsed.String()
	}
	return "[invalid-url]"
}

// IsProxyConfigured returns true if any proxy environment variable is set
func IsProxyConfigured() bool {
	return getProxyURL() != ""
}
