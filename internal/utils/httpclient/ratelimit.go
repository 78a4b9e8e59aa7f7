package httpclient

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the default maximum requests per second per client.
	DefaultRateLimit = 1.0

	// RateLimitEnvVar overrides DefaultRateLimit.
	RateLimitEnvVar = "TRENDTAGS_RATE_LIMIT"
)

// HTTPClientInterface defines the interface for HTTP clients
type HTTPClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient spaces out requests with a token bucket shared by all callers.
type RateLimitedHTTPClient struct {
	client  HTTPClientInterface
	limiter *rate.Limiter
}

// Do waits for the limiter, honouring the request's context, then sends req.
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// NewRateLimitedHTTPClient wraps client with a limiter allowing perSecond requests and a burst of one.
// A nil client gets a proxy-aware client with the given timeout.
func NewRateLimitedHTTPClient(client HTTPClientInterface, timeout time.Duration, perSecond float64) *RateLimitedHTTPClient {
	if client == nil {
		client = NewHTTPClientWithProxy(timeout)
	}
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	return &RateLimitedHTTPClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// RateLimitFromEnv returns the configured requests per second, falling back to DefaultRateLimit.
func RateLimitFromEnv() float64 {
	if envValue := os.Getenv(RateLimitEnvVar); envValue != "" {
		if value, err := strconv.ParseFloat(envValue, 64); err == nil && value > 0 {
			return value
		}
	}
	return DefaultRateLimit
}
