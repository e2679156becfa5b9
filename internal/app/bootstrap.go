package app

import (
	"context"
	"fmt"

	"market-dashboard/config"
	"market-dashboard/marketdata"
	"market-dashboard/models"
	"market-dashboard/news"
	"market-dashboard/observability"
	"market-dashboard/repository"
	"market-dashboard/services"
)

// Stack is a controller together with the optional backing stores it owns
type Stack struct {
	Controller *Controller
	Repo       *repository.Repository
	Redis      *marketdata.RedisStore
}

// Build wires providers, caches and history from cfg. Postgres and Redis are
// optional; when configured but unreachable Build fails. extra options are
// applied to every outbound client after the defaults derived from cfg.
func Build(ctx context.Context, cfg *config.Config, extra ...services.Option) (*Stack, error) {
	stack := &Stack{}

	outbound := append([]services.Option{
		services.WithRetryConfig(services.NewRetryConfig(cfg.Outbound.MaxRetries)),
	}, extra...)
	with := func(baseURL string) []services.Option {
		return append([]services.Option{services.WithBaseURL(baseURL)}, outbound...)
	}

	watchlist, err := config.LoadWatchlist(cfg.Dashboard.WatchlistFile)
	if err != nil {
		return nil, err
	}

	// Quotes
	quoteOpts := []marketdata.Option{marketdata.WithTTL(cfg.QuoteTTL())}
	if cfg.HasRedis() {
		store, err := marketdata.NewRedisStore(ctx, cfg.Redis.URL, cfg.QuoteTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		stack.Redis = store
		quoteOpts = append(quoteOpts, marketdata.WithStore(store))
		observability.Info("using redis quote cache")
	}

	var provider marketdata.QuoteProvider
	if cfg.HasMarketstack() {
		provider = services.NewMarketstackService(cfg.Marketstack.APIKey, with(cfg.Marketstack.BaseURL)...)
	} else {
		observability.Warn("MARKETSTACK_API_KEY not set, dashboard will show sample quotes")
	}
	quotes := marketdata.NewService(provider, marketdata.NewMapper(watchlist.SymbolMap), quoteOpts...)

	// News
	var primary services.MarketNewsInterface
	var secondary services.HeadlinesInterface
	if cfg.HasAlphaVantage() {
		primary = services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, with(cfg.AlphaVantage.BaseURL)...)
	}
	if cfg.HasNewsAPI() {
		secondary = services.NewNewsAPIService(cfg.NewsAPI.APIKey, with(cfg.NewsAPI.BaseURL)...)
	}
	feed := news.NewAggregator(primary, secondary)
	observability.Info("news source selected", "source", feed.Source())

	// Analysis workflows
	hookOpts := append([]services.Option{services.WithTimeout(cfg.WebhookTimeout())}, outbound...)
	market := services.NewWebhookService(cfg.Webhooks.MarketURL, string(models.AnalysisKindMarket), hookOpts...)
	stock := services.NewWebhookService(cfg.Webhooks.StockURL, string(models.AnalysisKindStock), hookOpts...)

	opts := []Option{
		WithSymbols(watchlist.IndicesOr(nil), watchlist.StocksOr(nil)),
		WithRefreshInterval(cfg.RefreshInterval()),
	}

	// History
	if cfg.HasDatabase() {
		repo, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			stack.Close()
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		stack.Repo = repo
		opts = append(opts, WithRepository(repo))
	} else {
		observability.Info("DATABASE_URL not set, analysis history disabled")
	}

	stack.Controller = New(quotes, feed, market, stock, opts...)
	return stack, nil
}

// HealthChecks returns probes for the configured backing stores
func (s *Stack) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}
	if s.Repo != nil {
		checks["database"] = s.Repo.Health
	}
	if s.Redis != nil {
		checks["redis"] = s.Redis.Ping
	}
	return checks
}

// Close releases the backing stores
func (s *Stack) Close() {
	if s.Repo != nil {
		s.Repo.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			observability.Warn("failed to close redis", "error", err)
		}
	}
}
