package mocks

// Service names used to address mock behaviour
const (
	ServiceMarketstack  = "marketstack"
	ServiceAlphaVantage = "alphavantage"
	ServiceNewsAPI      = "newsapi"
	ServiceMarketHook   = "market_webhook"
	ServiceStockHook    = "stock_webhook"
)

// Paths served by the mock. Base URLs handed to the clients are the mock URL
// plus the prefix, e.g. URL()+MarketstackPrefix.
const (
	MarketstackPrefix  = "/v1"
	AlphaVantagePath   = "/query"
	NewsAPIPrefix      = "/v2"
	MarketWebhookPath  = "/webhook/market"
	StockWebhookPath   = "/webhook/stock"
	marketstackEODPath = MarketstackPrefix + "/eod"
	newsAPIHeadlines   = NewsAPIPrefix + "/top-headlines"
)

// EODBar is one Marketstack end-of-day record.
type EODBar struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// SentimentArticle is one item of the Alpha Vantage NEWS_SENTIMENT feed.
type SentimentArticle struct {
	Title                 string `json:"title"`
	URL                   string `json:"url"`
	TimePublished         string `json:"time_published"`
	Summary               string `json:"summary"`
	BannerImage           string `json:"banner_image"`
	Source                string `json:"source"`
	CategoryWithinSource  string `json:"category_within_source"`
	OverallSentimentLabel string `json:"overall_sentiment_label"`
}

// Headline is one NewsAPI top-headlines article.
type Headline struct {
	Source      HeadlineSource `json:"source"`
	Author      string         `json:"author"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	URLToImage  string         `json:"urlToImage"`
	PublishedAt string         `json:"publishedAt"`
}

// HeadlineSource names the publisher of a headline.
type HeadlineSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Failure makes a mocked service answer with a fixed status and body.
type Failure struct {
	Status int
	Body   string
}

// WebhookReply is what a mocked workflow webhook answers.
type WebhookReply struct {
	Status int
	Body   string
}
