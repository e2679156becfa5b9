package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"market-dashboard/observability"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 10 << 20
)

// Option customizes an outbound service client
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	breakers   *CircuitBreakerRegistry
}

// WithBaseURL points the client at a different endpoint, e.g. a mock upstream
func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRetryConfig enables automatic retries of transient failures
func WithRetryConfig(rc RetryConfig) Option {
	return func(o *clientOptions) {
		o.retry = rc
	}
}

// WithCircuitBreakers uses registry instead of the global breaker registry
func WithCircuitBreakers(registry *CircuitBreakerRegistry) Option {
	return func(o *clientOptions) {
		o.breakers = registry
	}
}

func buildOptions(defaultBaseURL string, opts []Option) clientOptions {
	o := clientOptions{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      NoRetry,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// do sends req and returns the body of a 2xx response. Non-2xx responses
// become *APIError. Request counts, durations and errors are recorded.
func do(ctx context.Context, client *http.Client, req *http.Request, service, operation string) ([]byte, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(service, operation)
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(service, operation)

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		metrics.RecordExternalAPIError(service, operation, string(KindTransport))
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordExternalAPIError(service, operation, string(KindTransport))
		return nil, fmt.Errorf("failed to read %s response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
			Body:       string(body),
		}
		metrics.RecordExternalAPIError(service, operation, string(apiErr.Kind()))
		return nil, apiErr
	}

	return body, nil
}
