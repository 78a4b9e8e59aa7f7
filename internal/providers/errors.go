package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMissingToken is returned when a provider requires a credential that is not configured.
	ErrMissingToken = errors.New("provider token not configured")

	// ErrRunFailed is returned when a provider run finished without succeeding.
	ErrRunFailed = errors.New("provider run did not succeed")

	// ErrEmptyHandle is returned when a provider reports success without a usable handle.
	ErrEmptyHandle = errors.New("provider returned no run handle")
)

// StatusError reports an unexpected HTTP status from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API request failed with status %d", e.Provider, e.StatusCode)
}

// NewStatusError maps common status codes to readable messages.
func NewStatusError(provider string, statusCode int, body string) *StatusError {
	msg := body
	switch statusCode {
	case http.StatusUnauthorized:
		msg = "authentication failed: invalid API token"
	case http.StatusForbidden:
		msg = "access forbidden: check your API token and plan"
	case http.StatusTooManyRequests:
		msg = "rate limit exceeded: please wait before making more requests"
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &StatusError{Provider: provider, StatusCode: statusCode, Message: msg}
}

// IsTransient reports whether err is likely to succeed on a later attempt.
// The retry policy retries every failure; this only drives log levels and metrics.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return !errors.Is(err, ErrMissingToken)
}

// Classify returns a short category for err, used as a metric attribute.
func Classify(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return "auth"
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case statusErr.StatusCode >= 500:
			return "server"
		default:
			return "client"
		}
	}
	if errors.Is(err, ErrRunFailed) {
		return "run_failed"
	}
	return "other"
}
