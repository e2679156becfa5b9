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

// NewsAPIService fetches business headlines from NewsAPI.org
type NewsAPIService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	breakers   *CircuitBreakerRegistry
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(apiKey string, opts ...Option) *NewsAPIService {
	o := buildOptions("https://newsapi.org/v2", opts)
	return &NewsAPIService{
		apiKey:     apiKey,
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		retry:      o.retry,
		breakers:   o.breakers,
	}
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
}

// NewsAPIArticle is one headline. Source is usually an object but some
// mirrors send a plain string.
type NewsAPIArticle struct {
	Source      json.RawMessage `json:"source"`
	Author      string          `json:"author"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	URLToImage  string          `json:"urlToImage"`
	PublishedAt string          `json:"publishedAt"`
}

// IsConfigured reports whether an API key is set
func (s *NewsAPIService) IsConfigured() bool {
	return s.apiKey != ""
}

// GetTopHeadlines returns English business headlines
func (s *NewsAPIService) GetTopHeadlines(ctx context.Context) ([]models.NewsItem, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("newsapi: %w", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("category", "business")
	params.Set("language", "en")
	params.Set("apiKey", s.apiKey)
	endpoint := s.baseURL + "/top-headlines?" + params.Encode()

	var body []byte
	err := WithRetry(ctx, s.retry, func() error {
		b, err := Guard(ctx, s.breakers, BreakerNewsAPI, func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			return do(ctx, s.httpClient, req, BreakerNewsAPI, "top_headlines")
		})
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp NewsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &PayloadError{Service: BreakerNewsAPI, Reason: fmt.Sprintf("decode articles: %v", err)}
	}
	if resp.Articles == nil {
		return nil, &PayloadError{Service: BreakerNewsAPI, Reason: "missing articles"}
	}

	items := make([]models.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		items = append(items, a.toNewsItem())
	}

	return items, nil
}

func (a NewsAPIArticle) toNewsItem() models.NewsItem {
	published, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		observability.Debug("unparseable newsapi timestamp, using current time",
			"published_at", a.PublishedAt)
		published = time.Now()
	}

	return models.NewsItem{
		Title:     orDefault(a.Title, "No Title"),
		Summary:   orDefault(a.Description, "No Description"),
		URL:       a.URL,
		Source:    orDefault(a.sourceName(), "Unknown"),
		Timestamp: published,
		Image:     imageURL(a.URLToImage),
	}
}

func (a NewsAPIArticle) sourceName() string {
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(a.Source, &obj); err == nil {
		return obj.Name
	}
	var name string
	if err := json.Unmarshal(a.Source, &name); err == nil {
		return name
	}
	return ""
}
