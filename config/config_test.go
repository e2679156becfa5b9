package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATABASE_URL",
	"REDIS_URL",
	"MARKETSTACK_API_KEY",
	"MARKETSTACK_BASE_URL",
	"ALPHA_VANTAGE_API_KEY",
	"ALPHA_VANTAGE_BASE_URL",
	"NEWS_API_KEY",
	"NEWSAPI_BASE_URL",
	"MARKET_ANALYSIS_WEBHOOK_URL",
	"STOCK_ANALYSIS_WEBHOOK_URL",
	"WEBHOOK_TIMEOUT_SECONDS",
	"QUOTE_CACHE_TTL_MINUTES",
	"REFRESH_INTERVAL_MINUTES",
	"OUTBOUND_MAX_RETRIES",
	"WATCHLIST_FILE",
	"HTTP_ADDR",
	"CORS_ALLOWED_ORIGINS",
	"APP_ENV",
	"LOG_LEVEL",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Webhooks.MarketURL != DefaultMarketWebhookURL {
		t.Errorf("expected MarketURL=%s, got %s", DefaultMarketWebhookURL, cfg.Webhooks.MarketURL)
	}
	if cfg.Webhooks.StockURL != DefaultStockWebhookURL {
		t.Errorf("expected StockURL=%s, got %s", DefaultStockWebhookURL, cfg.Webhooks.StockURL)
	}
	if cfg.Webhooks.TimeoutSeconds != 120 {
		t.Errorf("expected TimeoutSeconds=120, got %d", cfg.Webhooks.TimeoutSeconds)
	}
	if cfg.Quotes.CacheTTLMinutes != 15 {
		t.Errorf("expected CacheTTLMinutes=15, got %d", cfg.Quotes.CacheTTLMinutes)
	}
	if cfg.Dashboard.RefreshIntervalMinutes != 5 {
		t.Errorf("expected RefreshIntervalMinutes=5, got %d", cfg.Dashboard.RefreshIntervalMinutes)
	}
	if cfg.Outbound.MaxRetries != 0 {
		t.Errorf("expected MaxRetries=0, got %d", cfg.Outbound.MaxRetries)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected Addr=':8080', got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.IsProduction() {
		t.Error("expected development environment by default")
	}
	if cfg.HasMarketstack() || cfg.HasAlphaVantage() || cfg.HasNewsAPI() {
		t.Error("expected no provider credentials by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("MARKETSTACK_API_KEY", "ms-key")
	os.Setenv("MARKETSTACK_BASE_URL", "http://localhost:9000/v1")
	os.Setenv("ALPHA_VANTAGE_API_KEY", "av-key")
	os.Setenv("NEWS_API_KEY", "na-key")
	os.Setenv("MARKET_ANALYSIS_WEBHOOK_URL", "http://localhost:9000/webhook/market")
	os.Setenv("WEBHOOK_TIMEOUT_SECONDS", "45")
	os.Setenv("QUOTE_CACHE_TTL_MINUTES", "30")
	os.Setenv("REFRESH_INTERVAL_MINUTES", "1")
	os.Setenv("OUTBOUND_MAX_RETRIES", "2")
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("APP_ENV", "Production")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Marketstack.APIKey != "ms-key" {
		t.Errorf("expected Marketstack.APIKey='ms-key', got %s", cfg.Marketstack.APIKey)
	}
	if cfg.Marketstack.BaseURL != "http://localhost:9000/v1" {
		t.Errorf("unexpected Marketstack.BaseURL %s", cfg.Marketstack.BaseURL)
	}
	if cfg.Webhooks.MarketURL != "http://localhost:9000/webhook/market" {
		t.Errorf("unexpected MarketURL %s", cfg.Webhooks.MarketURL)
	}
	if cfg.WebhookTimeout() != 45*time.Second {
		t.Errorf("expected WebhookTimeout=45s, got %v", cfg.WebhookTimeout())
	}
	if cfg.QuoteTTL() != 30*time.Minute {
		t.Errorf("expected QuoteTTL=30m, got %v", cfg.QuoteTTL())
	}
	if cfg.RefreshInterval() != time.Minute {
		t.Errorf("expected RefreshInterval=1m, got %v", cfg.RefreshInterval())
	}
	if cfg.Outbound.MaxRetries != 2 {
		t.Errorf("expected MaxRetries=2, got %d", cfg.Outbound.MaxRetries)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected Addr=':9090', got %s", cfg.HTTP.Addr)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("expected LogLevel='debug', got %s", cfg.App.LogLevel)
	}
	if !cfg.HasMarketstack() || !cfg.HasAlphaVantage() || !cfg.HasNewsAPI() {
		t.Error("expected all provider credentials to be detected")
	}
}

func TestValidate_PositiveIntegers(t *testing.T) {
	tests := []struct {
		name    string
		envKey  string
		envVal  string
		wantErr bool
	}{
		{
			name:    "negative timeout uses default",
			envKey:  "WEBHOOK_TIMEOUT_SECONDS",
			envVal:  "-5",
			wantErr: false, // uses default
		},
		{
			name:    "zero ttl uses default",
			envKey:  "QUOTE_CACHE_TTL_MINUTES",
			envVal:  "0",
			wantErr: false, // uses default
		},
		{
			name:    "invalid interval uses default",
			envKey:  "REFRESH_INTERVAL_MINUTES",
			envVal:  "not-a-number",
			wantErr: false, // uses default
		},
		{
			name:    "too many retries",
			envKey:  "OUTBOUND_MAX_RETRIES",
			envVal:  "50",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := saveEnv(t, allEnvKeys)
			defer restoreEnv(t, saved)
			clearEnv(t, allEnvKeys)

			os.Setenv(tt.envKey, tt.envVal)

			_, err := Load()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_URLs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "webhook without scheme",
			mutate:  func(c *Config) { c.Webhooks.MarketURL = "n8n.example.com/webhook" },
			wantErr: "MARKET_ANALYSIS_WEBHOOK_URL",
		},
		{
			name:    "empty stock webhook",
			mutate:  func(c *Config) { c.Webhooks.StockURL = "" },
			wantErr: "STOCK_ANALYSIS_WEBHOOK_URL",
		},
		{
			name:    "provider base url with bad scheme",
			mutate:  func(c *Config) { c.NewsAPI.BaseURL = "ftp://newsapi.org" },
			wantErr: "NEWSAPI_BASE_URL",
		},
		{
			name:   "provider base url may be empty",
			mutate: func(c *Config) { c.Marketstack.BaseURL = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error to mention %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHasDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: ""},
	}
	if cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return false for empty URL")
	}

	cfg.Database.URL = "postgres://localhost/test"
	if !cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return true for non-empty URL")
	}
}

func TestHasRedis(t *testing.T) {
	cfg := &Config{}
	if cfg.HasRedis() {
		t.Error("expected HasRedis() to return false for empty URL")
	}

	cfg.Redis.URL = "redis://localhost:6379/0"
	if !cfg.HasRedis() {
		t.Error("expected HasRedis() to return true for non-empty URL")
	}
}

func TestHasMarketstack(t *testing.T) {
	cfg := &Config{}
	if cfg.HasMarketstack() {
		t.Error("expected HasMarketstack() to return false for empty key")
	}

	cfg.Marketstack.APIKey = "key"
	if !cfg.HasMarketstack() {
		t.Error("expected HasMarketstack() to return true for non-empty key")
	}
}

func TestHasAlphaVantage(t *testing.T) {
	cfg := &Config{
		AlphaVantage: AlphaVantageConfig{APIKey: ""},
	}
	if cfg.HasAlphaVantage() {
		t.Error("expected HasAlphaVantage() to return false for empty key")
	}

	cfg.AlphaVantage.APIKey = "key"
	if !cfg.HasAlphaVantage() {
		t.Error("expected HasAlphaVantage() to return true for non-empty key")
	}
}

func TestHasNewsAPI(t *testing.T) {
	cfg := &Config{
		NewsAPI: NewsAPIConfig{APIKey: ""},
	}
	if cfg.HasNewsAPI() {
		t.Error("expected HasNewsAPI() to return false for empty key")
	}

	cfg.NewsAPI.APIKey = "key"
	if !cfg.HasNewsAPI() {
		t.Error("expected HasNewsAPI() to return true for non-empty key")
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_GET_ENV_STRING"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvString(key, "default"); got != "default" {
		t.Errorf("expected 'default', got %s", got)
	}

	// Set value returns value
	os.Setenv(key, "custom")
	if got := getEnvString(key, "default"); got != "custom" {
		t.Errorf("expected 'custom', got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	// Valid integer
	os.Setenv(key, "100")
	if got := getEnvInt(key, 42); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}

	// Invalid integer returns default
	os.Setenv(key, "invalid")
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42 for invalid value, got %d", got)
	}

	// Zero returns default
	os.Setenv(key, "0")
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42 for zero value, got %d", got)
	}
}

func TestGetEnvNonNegativeInt(t *testing.T) {
	key := "TEST_GET_ENV_NON_NEGATIVE_INT"
	defer os.Unsetenv(key)

	os.Setenv(key, "0")
	if got := getEnvNonNegativeInt(key, 3); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}

	os.Setenv(key, "-1")
	if got := getEnvNonNegativeInt(key, 3); got != 3 {
		t.Errorf("expected 3 for negative value, got %d", got)
	}
}

func TestLoadWatchlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	content := `indices:
  - "^DJI"
  - "^gspc"
stocks:
  - aapl
  - " msft "
  - AAPL
symbol_map:
  "^rut": iwm
  "": SPY
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}

	wl, err := LoadWatchlist(path)
	if err != nil {
		t.Fatalf("LoadWatchlist() failed: %v", err)
	}

	if got := strings.Join(wl.Indices, ","); got != "^DJI,^GSPC" {
		t.Errorf("unexpected indices %s", got)
	}
	if got := strings.Join(wl.Stocks, ","); got != "AAPL,MSFT" {
		t.Errorf("unexpected stocks %s", got)
	}
	if len(wl.SymbolMap) != 1 || wl.SymbolMap["^RUT"] != "IWM" {
		t.Errorf("unexpected symbol map %v", wl.SymbolMap)
	}
}

func TestLoadWatchlist_MissingFile(t *testing.T) {
	wl, err := LoadWatchlist(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	fallback := []string{"AAPL"}
	if got := wl.StocksOr(fallback); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("expected fallback stocks, got %v", got)
	}
	if got := wl.IndicesOr([]string{"^DJI"}); got[0] != "^DJI" {
		t.Errorf("expected fallback indices, got %v", got)
	}
}

func TestLoadWatchlist_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("indices: [unterminated"), 0o600); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}
	if _, err := LoadWatchlist(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewTestConfig(t *testing.T) {
	cfg := NewTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("NewTestConfig() should validate, got %v", err)
	}
	if cfg.HasDatabase() || cfg.HasRedis() {
		t.Error("expected test config without external stores")
	}
}
