package services

import (
	"context"

	"market-dashboard/models"
)

// QuoteProviderInterface defines end-of-day quote operations
type QuoteProviderInterface interface {
	IsConfigured() bool
	GetLatestEOD(ctx context.Context, symbol string) (*models.Quote, error)
	RawEOD(ctx context.Context, symbol string) (int, []byte, error)
}

// MarketNewsInterface defines the primary news feed with sentiment
type MarketNewsInterface interface {
	IsConfigured() bool
	GetMarketNews(ctx context.Context) ([]models.NewsItem, error)
}

// HeadlinesInterface defines the secondary headline feed
type HeadlinesInterface interface {
	IsConfigured() bool
	GetTopHeadlines(ctx context.Context) ([]models.NewsItem, error)
}

// WebhookInterface defines analysis workflow operations
type WebhookInterface interface {
	IsConfigured() bool
	Post(ctx context.Context, payload any) ([]byte, error)
}

// Compile-time interface verification
var _ QuoteProviderInterface = (*MarketstackService)(nil)
var _ MarketNewsInterface = (*AlphaVantageService)(nil)
var _ HeadlinesInterface = (*NewsAPIService)(nil)
var _ WebhookInterface = (*WebhookService)(nil)
