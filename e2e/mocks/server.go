// Package mocks provides HTTP mock servers for external APIs used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer provides configurable mock responses for every upstream the
// dashboard talks to: Marketstack, Alpha Vantage, NewsAPI and both workflow
// webhooks.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Response configurations
	bars      map[string]EODBar // key: provider symbol
	sentiment []SentimentArticle
	headlines []Headline
	webhooks  map[string]WebhookReply // key: ServiceMarketHook / ServiceStockHook

	// Error injection, keyed by service name
	failures map[string]Failure

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method  string
	Path    string
	Query   string
	Body    string
	Service string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		bars:       make(map[string]EODBar),
		webhooks:   make(map[string]WebhookReply),
		failures:   make(map[string]Failure),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// MarketstackURL is the base URL to configure the Marketstack client with.
func (m *MockServer) MarketstackURL() string { return m.URL() + MarketstackPrefix }

// AlphaVantageURL is the base URL to configure the Alpha Vantage client with.
func (m *MockServer) AlphaVantageURL() string { return m.URL() + AlphaVantagePath }

// NewsAPIURL is the base URL to configure the NewsAPI client with.
func (m *MockServer) NewsAPIURL() string { return m.URL() + NewsAPIPrefix }

// MarketWebhookURL is the market workflow endpoint.
func (m *MockServer) MarketWebhookURL() string { return m.URL() + MarketWebhookPath }

// StockWebhookURL is the stock workflow endpoint.
func (m *MockServer) StockWebhookURL() string { return m.URL() + StockWebhookPath }

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := ""
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}

	path := r.URL.Path
	service := ""
	switch {
	case path == marketstackEODPath:
		service = ServiceMarketstack
	case path == AlphaVantagePath:
		service = ServiceAlphaVantage
	case path == newsAPIHeadlines:
		service = ServiceNewsAPI
	case path == MarketWebhookPath:
		service = ServiceMarketHook
	case path == StockWebhookPath:
		service = ServiceStockHook
	}

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method:  r.Method,
		Path:    path,
		Query:   r.URL.RawQuery,
		Body:    body,
		Service: service,
	})
	failure, failing := m.failures[service]
	m.mu.Unlock()

	if service == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if failing {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failure.Status)
		io.WriteString(w, failure.Body)
		return
	}

	switch service {
	case ServiceMarketstack:
		m.handleEOD(w, r)
	case ServiceAlphaVantage:
		m.handleSentiment(w, r)
	case ServiceNewsAPI:
		m.handleHeadlines(w, r)
	default:
		m.handleWebhook(w, r, service)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// Requests returns the logged requests for one service.
func (m *MockServer) Requests(service string) []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RequestLog
	for _, r := range m.requestLog {
		if r.Service == service {
			out = append(out, r)
		}
	}
	return out
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetBar configures the end-of-day record returned for a provider symbol.
func (m *MockServer) SetBar(bar EODBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[bar.Symbol] = bar
}

// SetSentimentFeed configures the Alpha Vantage news feed.
func (m *MockServer) SetSentimentFeed(articles []SentimentArticle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentiment = articles
}

// SetHeadlines configures the NewsAPI articles.
func (m *MockServer) SetHeadlines(headlines []Headline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headlines = headlines
}

// SetWebhookReply configures what a workflow webhook answers.
func (m *MockServer) SetWebhookReply(service string, reply WebhookReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	m.webhooks[service] = reply
}

// SetFailure makes a service answer every request with the given status and body.
func (m *MockServer) SetFailure(service string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[service] = Failure{Status: status, Body: body}
}

// ClearFailure restores normal responses for a service.
func (m *MockServer) ClearFailure(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, service)
}

func (m *MockServer) setDefaults() {
	date := time.Now().UTC().Truncate(24 * time.Hour).Format("2006-01-02T15:04:05-0700")

	// ETF proxies for the indices plus the default watchlist
	defaults := []struct {
		symbol string
		close  float64
	}{
		{"DIA", 389.12}, {"SPY", 512.40}, {"QQQ", 438.77},
		{"AAPL", 189.84}, {"MSFT", 415.50}, {"AMZN", 178.25}, {"GOOGL", 152.10},
		{"META", 487.05}, {"TSLA", 175.34}, {"NVDA", 880.08}, {"NFLX", 618.20},
	}
	for _, d := range defaults {
		m.bars[d.symbol] = EODBar{
			Symbol:   d.symbol,
			Exchange: "XNAS",
			Date:     date,
			Open:     d.close * 0.99,
			High:     d.close * 1.01,
			Low:      d.close * 0.98,
			Close:    d.close,
			Volume:   25_000_000,
		}
	}

	m.sentiment = generateSentimentFeed(12)
	m.headlines = generateHeadlines(8)

	m.webhooks[ServiceMarketHook] = WebhookReply{
		Status: http.StatusOK,
		Body:   `{"predictions":{"^DJI":{"up":55,"down":25,"neutral":20,"key_fibonacci_levels":["38.2%"],"fractal_signals":["bullish fractal"],"market_structure":"higher highs"},"^GSPC":{"up":60,"down":20,"neutral":20,"key_fibonacci_levels":[],"fractal_signals":[],"market_structure":"uptrend"}},"summary":"Broad strength led by large caps."}`,
	}
	m.webhooks[ServiceStockHook] = WebhookReply{
		Status: http.StatusOK,
		Body:   `[{"output":"` + "```json\\n" + `{\"predictions\":{\"NVDA\":{\"up\":70,\"down\":10,\"neutral\":20,\"key_fibonacci_levels\":[\"61.8%\"],\"fractal_signals\":[],\"market_structure\":\"uptrend\",\"stock_summary\":\"AI demand keeps momentum intact.\"}}}` + "\\n```" + `"}]`,
	}
}

func (m *MockServer) handleEOD(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("access_key") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"code": "missing_access_key", "message": "You have not supplied an API Access Key."},
		})
		return
	}

	var data []EODBar
	m.mu.RLock()
	for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if bar, ok := m.bars[sym]; ok {
			data = append(data, bar)
		}
	}
	m.mu.RUnlock()

	if data == nil {
		data = []EODBar{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pagination": map[string]int{"limit": 1, "offset": 0, "count": len(data), "total": len(data)},
		"data":       data,
	})
}

func (m *MockServer) handleSentiment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("function") != "NEWS_SENTIMENT" {
		writeJSON(w, http.StatusOK, map[string]string{"Error Message": "Invalid API call."})
		return
	}
	if q.Get("apikey") == "" {
		writeJSON(w, http.StatusOK, map[string]string{"Information": "Please specify an API key."})
		return
	}

	m.mu.RLock()
	feed := append([]SentimentArticle{}, m.sentiment...)
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"items": fmt.Sprint(len(feed)),
		"feed":  feed,
	})
}

func (m *MockServer) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("apiKey") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"status":  "error",
			"code":    "apiKeyMissing",
			"message": "Your API key is missing.",
		})
		return
	}

	m.mu.RLock()
	articles := append([]Headline{}, m.headlines...)
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"totalResults": len(articles),
		"articles":     articles,
	})
}

func (m *MockServer) handleWebhook(w http.ResponseWriter, r *http.Request, service string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.RLock()
	reply := m.webhooks[service]
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	io.WriteString(w, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func generateSentimentFeed(n int) []SentimentArticle {
	topics := []string{"Fed holds rates steady", "NVDA extends rally on AI demand", "Treasury yields slip", "Oil climbs on supply worries"}
	labels := []string{"Bullish", "Somewhat-Bullish", "Neutral", "Somewhat-Bearish"}
	now := time.Now().UTC()

	feed := make([]SentimentArticle, n)
	for i := range feed {
		feed[i] = SentimentArticle{
			Title:                 fmt.Sprintf("%s (%d)", topics[i%len(topics)], i+1),
			URL:                   fmt.Sprintf("https://news.example.com/markets/%d", i+1),
			TimePublished:         now.Add(-time.Duration(i) * time.Hour).Format("20060102T150405"),
			Summary:               "Markets reacted to the latest macro data.",
			BannerImage:           "",
			Source:                "Example Wire",
			CategoryWithinSource:  "Markets",
			OverallSentimentLabel: labels[i%len(labels)],
		}
	}
	return feed
}

func generateHeadlines(n int) []Headline {
	now := time.Now().UTC()

	headlines := make([]Headline, n)
	for i := range headlines {
		headlines[i] = Headline{
			Source:      HeadlineSource{ID: "example", Name: "Example Business"},
			Author:      "Staff",
			Title:       fmt.Sprintf("Business headline %d", i+1),
			Description: "Stocks were mixed in afternoon trading.",
			URL:         fmt.Sprintf("https://business.example.com/story/%d", i+1),
			PublishedAt: now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
	}
	return headlines
}
