package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"market-dashboard/models"
	"market-dashboard/observability"
)

// MarketstackService fetches end-of-day quotes from Marketstack
type MarketstackService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	breakers   *CircuitBreakerRegistry
}

// NewMarketstackService creates a new MarketstackService instance
func NewMarketstackService(apiKey string, opts ...Option) *MarketstackService {
	o := buildOptions("https://api.marketstack.com/v1", opts)
	return &MarketstackService{
		apiKey:     apiKey,
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		retry:      o.retry,
		breakers:   o.breakers,
	}
}

// MarketstackEODResponse represents the /eod response
type MarketstackEODResponse struct {
	Data []MarketstackEOD `json:"data"`
}

// MarketstackEOD is one end-of-day bar. Volume is sometimes sent as a float.
type MarketstackEOD struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	Date     string          `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// IsConfigured reports whether an access key is set
func (s *MarketstackService) IsConfigured() bool {
	return s.apiKey != ""
}

func (s *MarketstackService) eodURL(symbol string) string {
	params := url.Values{}
	params.Set("access_key", s.apiKey)
	params.Set("symbols", symbol)
	params.Set("limit", "1")
	return s.baseURL + "/eod?" + params.Encode()
}

// GetLatestEOD returns the most recent end-of-day quote for a provider symbol
func (s *MarketstackService) GetLatestEOD(ctx context.Context, symbol string) (*models.Quote, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("marketstack: %w", ErrNotConfigured)
	}

	var body []byte
	err := WithRetry(ctx, s.retry, func() error {
		b, err := Guard(ctx, s.breakers, BreakerMarketstack, func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.eodURL(symbol), nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			return do(ctx, s.httpClient, req, BreakerMarketstack, "eod")
		})
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp MarketstackEODResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &PayloadError{Service: BreakerMarketstack, Reason: fmt.Sprintf("decode eod: %v", err)}
	}
	if len(resp.Data) == 0 {
		return nil, &PayloadError{Service: BreakerMarketstack, Reason: "no data for " + symbol}
	}

	q := resp.Data[0].toQuote()
	return &q, nil
}

func (e MarketstackEOD) toQuote() models.Quote {
	return models.Quote{
		Symbol:   e.Symbol,
		Open:     e.Open,
		High:     e.High,
		Low:      e.Low,
		Close:    e.Close,
		Volume:   e.Volume.IntPart(),
		Date:     parseMarketstackDate(e.Date),
		Exchange: e.Exchange,
	}
}

// parseMarketstackDate accepts "2024-03-15T00:00:00+0000" and RFC 3339.
// Unparseable dates fall back to now.
func parseMarketstackDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if s != "" {
		observability.Debug("unparseable marketstack date, using current time", "date", s)
	}
	return time.Now()
}

// RawEOD performs an uncached /eod call and returns the status and body as
// received, for diagnosing credentials and symbol support. Only transport
// failures are returned as errors.
func (s *MarketstackService) RawEOD(ctx context.Context, symbol string) (int, []byte, error) {
	if !s.IsConfigured() {
		return 0, nil, fmt.Errorf("marketstack: %w", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.eodURL(symbol), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := do(ctx, s.httpClient, req, BreakerMarketstack, "eod_raw")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode, []byte(apiErr.Body), nil
		}
		return 0, nil, err
	}
	return http.StatusOK, body, nil
}
