package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration for the shared quote cache
	Redis RedisConfig

	// External service configurations
	Marketstack  MarketstackConfig
	AlphaVantage AlphaVantageConfig
	NewsAPI      NewsAPIConfig

	// Analysis workflow endpoints
	Webhooks WebhookConfig

	// Quote cache configuration
	Quotes QuotesConfig

	// Dashboard refresh and watchlist configuration
	Dashboard DashboardConfig

	// Outbound HTTP behaviour
	Outbound OutboundConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Application environment
	App AppConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string
}

// MarketstackConfig holds Marketstack API configuration
type MarketstackConfig struct {
	APIKey  string
	BaseURL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey  string
	BaseURL string
}

// WebhookConfig holds the analysis workflow endpoints
type WebhookConfig struct {
	MarketURL      string
	StockURL       string
	TimeoutSeconds int
}

// QuotesConfig holds quote cache configuration
type QuotesConfig struct {
	CacheTTLMinutes int
}

// DashboardConfig holds dashboard refresh configuration
type DashboardConfig struct {
	RefreshIntervalMinutes int
	WatchlistFile          string
}

// OutboundConfig holds retry settings for upstream calls
type OutboundConfig struct {
	MaxRetries int // 0 disables retries
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// AppConfig holds runtime environment settings
type AppConfig struct {
	Env      string // development or production
	LogLevel string
}

const (
	DefaultMarketWebhookURL = "https://n8n-sirius-agentic.onrender.com/webhook/market"
	DefaultStockWebhookURL  = "https://n8n-sirius-agentic.onrender.com/webhook/stocks"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Marketstack: MarketstackConfig{
			APIKey:  os.Getenv("MARKETSTACK_API_KEY"),
			BaseURL: os.Getenv("MARKETSTACK_BASE_URL"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
			BaseURL: os.Getenv("ALPHA_VANTAGE_BASE_URL"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey:  os.Getenv("NEWS_API_KEY"),
			BaseURL: os.Getenv("NEWSAPI_BASE_URL"),
		},
		Webhooks: WebhookConfig{
			MarketURL:      getEnvString("MARKET_ANALYSIS_WEBHOOK_URL", DefaultMarketWebhookURL),
			StockURL:       getEnvString("STOCK_ANALYSIS_WEBHOOK_URL", DefaultStockWebhookURL),
			TimeoutSeconds: getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 120),
		},
		Quotes: QuotesConfig{
			CacheTTLMinutes: getEnvInt("QUOTE_CACHE_TTL_MINUTES", 15),
		},
		Dashboard: DashboardConfig{
			RefreshIntervalMinutes: getEnvInt("REFRESH_INTERVAL_MINUTES", 5),
			WatchlistFile:          os.Getenv("WATCHLIST_FILE"),
		},
		Outbound: OutboundConfig{
			MaxRetries: getEnvNonNegativeInt("OUTBOUND_MAX_RETRIES", 0),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		App: AppConfig{
			Env:      strings.ToLower(getEnvString("APP_ENV", "development")),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Webhooks.TimeoutSeconds <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT_SECONDS must be positive, got %d", c.Webhooks.TimeoutSeconds)
	}
	if c.Quotes.CacheTTLMinutes <= 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL_MINUTES must be positive, got %d", c.Quotes.CacheTTLMinutes)
	}
	if c.Dashboard.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_MINUTES must be positive, got %d", c.Dashboard.RefreshIntervalMinutes)
	}
	if c.Outbound.MaxRetries < 0 || c.Outbound.MaxRetries > 10 {
		return fmt.Errorf("OUTBOUND_MAX_RETRIES must be between 0 and 10, got %d", c.Outbound.MaxRetries)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}

	urls := []struct {
		key      string
		value    string
		required bool
	}{
		{"MARKET_ANALYSIS_WEBHOOK_URL", c.Webhooks.MarketURL, true},
		{"STOCK_ANALYSIS_WEBHOOK_URL", c.Webhooks.StockURL, true},
		{"MARKETSTACK_BASE_URL", c.Marketstack.BaseURL, false},
		{"ALPHA_VANTAGE_BASE_URL", c.AlphaVantage.BaseURL, false},
		{"NEWSAPI_BASE_URL", c.NewsAPI.BaseURL, false},
	}
	for _, u := range urls {
		if u.value == "" && !u.required {
			continue
		}
		if err := validateHTTPURL(u.value); err != nil {
			return fmt.Errorf("%s: %w", u.key, err)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasRedis returns true if a Redis URL is configured
func (c *Config) HasRedis() bool {
	return c.Redis.URL != ""
}

// HasMarketstack returns true if Marketstack configuration is available
func (c *Config) HasMarketstack() bool {
	return c.Marketstack.APIKey != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasNewsAPI returns true if NewsAPI configuration is available
func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

// HasWatchlist returns true if a watchlist file is configured
func (c *Config) HasWatchlist() bool {
	return c.Dashboard.WatchlistFile != ""
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// QuoteTTL returns the quote cache TTL as a duration
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Quotes.CacheTTLMinutes) * time.Minute
}

// RefreshInterval returns the dashboard refresh interval as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Dashboard.RefreshIntervalMinutes) * time.Minute
}

// WebhookTimeout returns the workflow call timeout as a duration
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhooks.TimeoutSeconds) * time.Second
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvNonNegativeInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Webhooks: WebhookConfig{
			MarketURL:      DefaultMarketWebhookURL,
			StockURL:       DefaultStockWebhookURL,
			TimeoutSeconds: 120,
		},
		Quotes: QuotesConfig{
			CacheTTLMinutes: 15,
		},
		Dashboard: DashboardConfig{
			RefreshIntervalMinutes: 5,
		},
		HTTP: HTTPConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "*",
		},
		App: AppConfig{
			Env:      "development",
			LogLevel: "info",
		},
	}
}
