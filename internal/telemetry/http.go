package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPTransport adds OTEL client instrumentation to transport when tracing is enabled,
// preserving its proxy and timeout configuration.
func WrapHTTPTransport(transport http.RoundTripper) http.RoundTripper {
	if !IsEnabled() {
		return transport
	}
	return otelhttp.NewTransport(transport)
}

// WrapHTTPClient instruments client's transport in place and returns it.
func WrapHTTPClient(client *http.Client) *http.Client {
	if !IsEnabled() {
		return client
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(transport)
	return client
}
