package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"market-dashboard/models"
	"market-dashboard/observability"
)

const (
	alphaVantageNewsLimit  = 10
	alphaVantageTimeLayout = "20060102T150405"
)

// AlphaVantageService fetches market news with sentiment from Alpha Vantage
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	breakers   *CircuitBreakerRegistry
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string, opts ...Option) *AlphaVantageService {
	o := buildOptions("https://www.alphavantage.co/query", opts)
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		retry:      o.retry,
		breakers:   o.breakers,
	}
}

// NewsSentimentResponse represents the NEWS_SENTIMENT response. Alpha Vantage
// answers quota and key problems with HTTP 200 and an Information or Note field.
type NewsSentimentResponse struct {
	Feed        []NewsSentimentItem `json:"feed"`
	Information string              `json:"Information"`
	Note        string              `json:"Note"`
	ErrorMsg    string              `json:"Error Message"`
}

// NewsSentimentItem is one article in the sentiment feed
type NewsSentimentItem struct {
	Title                 string `json:"title"`
	URL                   string `json:"url"`
	TimePublished         string `json:"time_published"`
	Summary               string `json:"summary"`
	BannerImage           string `json:"banner_image"`
	Source                string `json:"source"`
	CategoryWithinSource  string `json:"category_within_source"`
	OverallSentimentLabel string `json:"overall_sentiment_label"`
}

// IsConfigured reports whether an API key is set
func (s *AlphaVantageService) IsConfigured() bool {
	return s.apiKey != ""
}

// GetMarketNews returns the first ten financial-markets articles from the sentiment feed
func (s *AlphaVantageService) GetMarketNews(ctx context.Context) ([]models.NewsItem, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("alphavantage: %w", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("topics", "financial_markets")
	params.Set("apikey", s.apiKey)
	endpoint := s.baseURL + "?" + params.Encode()

	var body []byte
	err := WithRetry(ctx, s.retry, func() error {
		b, err := Guard(ctx, s.breakers, BreakerAlphaVantage, func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			return do(ctx, s.httpClient, req, BreakerAlphaVantage, "news_sentiment")
		})
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp NewsSentimentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &PayloadError{Service: BreakerAlphaVantage, Reason: fmt.Sprintf("decode feed: %v", err)}
	}
	if resp.Feed == nil {
		reason := "missing feed"
		for _, msg := range []string{resp.ErrorMsg, resp.Information, resp.Note} {
			if msg != "" {
				reason = msg
				break
			}
		}
		return nil, &PayloadError{Service: BreakerAlphaVantage, Reason: reason}
	}

	feed := resp.Feed
	if len(feed) > alphaVantageNewsLimit {
		feed = feed[:alphaVantageNewsLimit]
	}

	items := make([]models.NewsItem, 0, len(feed))
	for _, item := range feed {
		items = append(items, item.toNewsItem())
	}

	return items, nil
}

func (item NewsSentimentItem) toNewsItem() models.NewsItem {
	published, err := time.Parse(alphaVantageTimeLayout, item.TimePublished)
	if err != nil {
		observability.Debug("unparseable alphavantage timestamp, using current time",
			"time_published", item.TimePublished)
		published = time.Now()
	}

	return models.NewsItem{
		Title:     orDefault(item.Title, "No Title"),
		Summary:   orDefault(item.Summary, "No Description"),
		URL:       item.URL,
		Source:    orDefault(item.Source, "Alpha Vantage"),
		Timestamp: published,
		Image:     imageURL(item.BannerImage),
		Category:  models.StringPtr(item.CategoryWithinSource),
		Sentiment: models.StringPtr(item.OverallSentimentLabel),
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// imageURL treats empty strings and the literal "null" some feeds send as absent
func imageURL(s string) *string {
	if s == "null" {
		return nil
	}
	return models.StringPtr(s)
}
