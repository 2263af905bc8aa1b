package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPClient wraps an HTTP client's transport with OpenTelemetry
// tracing. Spans are produced per outbound request under whatever span
// is active in the request context.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = otelhttp.NewTransport(transport)
	return client
}
