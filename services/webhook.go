package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 120 * time.Second

// WebhookService posts collected market data to an analysis workflow webhook
// and returns the reply body untouched. Interpreting the reply is left to the
// analysis package because its format varies.
type WebhookService struct {
	url        string
	name       string
	httpClient *http.Client
	retry      RetryConfig
	breakers   *CircuitBreakerRegistry
}

// NewWebhookService creates a client for the workflow at url. name labels
// metrics and logs, e.g. "market" or "stock".
func NewWebhookService(url, name string, opts ...Option) *WebhookService {
	o := buildOptions(url, append([]Option{WithTimeout(defaultWebhookTimeout)}, opts...))
	return &WebhookService{
		url:        o.baseURL,
		name:       name,
		httpClient: o.httpClient,
		retry:      o.retry,
		breakers:   o.breakers,
	}
}

// IsConfigured reports whether a webhook URL is set
func (s *WebhookService) IsConfigured() bool {
	return s.url != ""
}

// Post sends payload as JSON and returns the raw response body
func (s *WebhookService) Post(ctx context.Context, payload any) ([]byte, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("%s webhook: %w", s.name, ErrNotConfigured)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var body []byte
	err = WithRetry(ctx, s.retry, func() error {
		b, err := Guard(ctx, s.breakers, WebhookBreakerName(s.name), func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			return do(ctx, s.httpClient, req, BreakerWebhook, s.name)
		})
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
