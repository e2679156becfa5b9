// Package news gathers financial headlines from whichever provider is configured.
package news

import (
	"context"
	"time"

	"market-dashboard/models"
	"market-dashboard/observability"
	"market-dashboard/services"
)

// Source names
const (
	SourceAlphaVantage = "alphavantage"
	SourceNewsAPI      = "newsapi"
	SourceFixtures     = "fixtures"
)

// Result is a news fetch with the source that actually served it
type Result struct {
	Items  []models.NewsItem
	Source string
	Err    error
}

// Aggregator selects the primary sentiment feed when keyed, otherwise the
// headline feed, otherwise fixtures. A failing provider falls back to
// fixtures, never to the other provider.
type Aggregator struct {
	primary   services.MarketNewsInterface
	secondary services.HeadlinesInterface
	now       func() time.Time
	metrics   *observability.Metrics
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock injects the time source used for fixture timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithMetrics records fetch metrics on m instead of the global metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an Aggregator. Either provider may be nil.
func NewAggregator(primary services.MarketNewsInterface, secondary services.HeadlinesInterface, opts ...Option) *Aggregator {
	a := &Aggregator{
		primary:   primary,
		secondary: secondary,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observability.GetMetrics()
	}
	return a
}

// Source reports which provider a fetch would try first
func (a *Aggregator) Source() string {
	switch {
	case a.primary != nil && a.primary.IsConfigured():
		return SourceAlphaVantage
	case a.secondary != nil && a.secondary.IsConfigured():
		return SourceNewsAPI
	default:
		return SourceFixtures
	}
}

// GetFinancialNews returns news items; it never fails
func (a *Aggregator) GetFinancialNews(ctx context.Context) []models.NewsItem {
	return a.Fetch(ctx).Items
}

// Fetch returns news items together with the source used and any provider error
func (a *Aggregator) Fetch(ctx context.Context) Result {
	source := a.Source()

	var (
		items []models.NewsItem
		err   error
	)
	switch source {
	case SourceAlphaVantage:
		items, err = a.primary.GetMarketNews(ctx)
	case SourceNewsAPI:
		items, err = a.secondary.GetTopHeadlines(ctx)
	default:
		a.metrics.RecordNewsFetch(SourceFixtures)
		return Result{Items: Fixtures(a.now()), Source: SourceFixtures}
	}

	if err != nil {
		observability.WithProvider(source).Warn("news fetch failed, using fixtures",
			"error_type", services.KindOf(err),
			"error", err)
		a.metrics.RecordNewsFetch(SourceFixtures)
		return Result{Items: Fixtures(a.now()), Source: SourceFixtures, Err: err}
	}

	a.metrics.RecordNewsFetch(source)
	return Result{Items: items, Source: source}
}
