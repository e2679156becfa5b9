// Package marketdata serves end-of-day quotes for dashboard symbols through a
// TTL cache, padding anything the provider cannot supply with fixtures.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"market-dashboard/models"
	"market-dashboard/observability"
	"market-dashboard/services"
)

// DefaultTTL is how long a fetched quote is served from cache
const DefaultTTL = 15 * time.Minute

// Fallback kinds recorded for padded quotes
const (
	FallbackFixture     = "fixture"
	FallbackPlaceholder = "placeholder"
)

// QuoteProvider is the subset of the quote API the service needs
type QuoteProvider interface {
	IsConfigured() bool
	GetLatestEOD(ctx context.Context, symbol string) (*models.Quote, error)
	RawEOD(ctx context.Context, symbol string) (int, []byte, error)
}

// FetchResult describes where each returned quote came from
type FetchResult struct {
	Quotes   []models.Quote
	Live     []string
	Fallback []string
	Errors   []error
}

// AllFallback reports whether no requested symbol got live data
func (r FetchResult) AllFallback() bool {
	return len(r.Live) == 0 && len(r.Fallback) > 0
}

// FirstError returns the first provider error, if any
func (r FetchResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Service answers quote lookups from cache, provider, fixtures or placeholders,
// in that order of preference.
type Service struct {
	provider QuoteProvider
	mapper   *Mapper
	store    Store
	ttl      time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithStore replaces the in-memory cache store
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

// WithTTL sets the cache freshness window
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source used for freshness and placeholders
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records cache metrics on m instead of the global metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a quote service. A nil or unconfigured provider means
// every lookup is answered from cache or fixtures without network calls.
func NewService(provider QuoteProvider, mapper *Mapper, opts ...Option) *Service {
	if mapper == nil {
		mapper = NewMapper(nil)
	}
	s := &Service{
		provider: provider,
		mapper:   mapper,
		store:    NewMemoryStore(),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.GetMetrics()
	}
	return s
}

// Mapper returns the symbol mapper in use
func (s *Service) Mapper() *Mapper {
	return s.mapper
}

// Live reports whether a configured provider is available
func (s *Service) Live() bool {
	return s.provider != nil && s.provider.IsConfigured()
}

// GetQuotes returns exactly one quote per distinct requested symbol, in request order
func (s *Service) GetQuotes(ctx context.Context, symbols []string) []models.Quote {
	return s.Fetch(ctx, symbols).Quotes
}

// GetQuote returns the quote for a single symbol. Because lookups are padded
// with placeholders the second return value is false only if that guarantee
// is ever broken.
func (s *Service) GetQuote(ctx context.Context, symbol string) (models.Quote, bool) {
	return models.FindQuote(s.GetQuotes(ctx, []string{symbol}), symbol)
}

// Fetch is GetQuotes with provenance: which symbols were live, which were
// padded, and the provider errors encountered along the way.
func (s *Service) Fetch(ctx context.Context, symbols []string) FetchResult {
	symbols = dedupe(symbols)
	found := make(map[string]models.Quote, len(symbols))
	var result FetchResult

	now := s.now()
	misses := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		entry, ok, err := s.store.Get(ctx, sym)
		if err != nil {
			observability.WithSymbol(sym).Warn("quote cache read failed", "error", err)
		}
		if ok && entry.Fresh(now, s.ttl) {
			found[sym] = entry.Quote
			result.Live = append(result.Live, sym)
			continue
		}
		misses = append(misses, sym)
	}
	s.metrics.RecordCacheLookup(len(symbols)-len(misses), len(misses))

	if len(misses) > 0 && s.Live() {
		for _, sym := range misses {
			if err := ctx.Err(); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("quote fetch aborted: %w", err))
				break
			}

			providerSymbol := s.mapper.Convert(sym)
			q, err := s.provider.GetLatestEOD(ctx, providerSymbol)
			if err != nil {
				observability.WithSymbol(sym).Warn("quote fetch failed",
					"provider_symbol", providerSymbol,
					"error_type", services.KindOf(err),
					"error", err)
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", sym, err))
				continue
			}

			// The record is labelled with the first table entry for the provider
			// symbol, so a second dashboard symbol sharing it ends up padded.
			quote := *q
			if quote.Symbol == "" {
				quote.Symbol = providerSymbol
			}
			label := s.mapper.Inverse(quote.Symbol)
			if label != sym {
				observability.WithSymbol(sym).Warn("provider quote relabelled to another symbol",
					"provider_symbol", quote.Symbol,
					"label", label)
			}
			quote.Symbol = label
			if err := s.store.Set(ctx, label, Entry{Quote: quote, CapturedAt: s.now()}); err != nil {
				observability.WithSymbol(label).Warn("quote cache write failed", "error", err)
			}
			if _, done := found[label]; !done {
				result.Live = append(result.Live, label)
			}
			found[label] = quote
		}
	}

	result.Quotes = make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := found[sym]; ok {
			result.Quotes = append(result.Quotes, q)
			continue
		}
		result.Quotes = append(result.Quotes, s.pad(sym))
		result.Fallback = append(result.Fallback, sym)
	}

	return result
}

func (s *Service) pad(symbol string) models.Quote {
	if q, ok := Fixture(symbol); ok {
		s.metrics.RecordQuoteFallback(FallbackFixture)
		return q
	}
	s.metrics.RecordQuoteFallback(FallbackPlaceholder)
	return PlaceholderQuote(symbol, s.now())
}

// Clear empties the quote cache
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// ProviderTest is the outcome of a raw, uncached provider call
type ProviderTest struct {
	Symbol         string          `json:"symbol"`
	ProviderSymbol string          `json:"provider_symbol"`
	StatusCode     int             `json:"status_code"`
	Body           json.RawMessage `json:"body"`
	Message        string          `json:"message,omitempty"`
}

// TestProvider calls the provider directly for symbol, bypassing cache and
// fallbacks, and returns whatever it answered.
func (s *Service) TestProvider(ctx context.Context, symbol string) (*ProviderTest, error) {
	if !s.Live() {
		return nil, fmt.Errorf("quote provider: %w", services.ErrNotConfigured)
	}

	providerSymbol := s.mapper.Convert(symbol)
	status, body, err := s.provider.RawEOD(ctx, providerSymbol)
	if err != nil {
		return nil, err
	}

	result := &ProviderTest{
		Symbol:         symbol,
		ProviderSymbol: providerSymbol,
		StatusCode:     status,
	}
	if json.Valid(body) {
		result.Body = body
	} else {
		quoted, _ := json.Marshal(string(body))
		result.Body = quoted
	}
	if status >= 400 {
		result.Message = services.UserMessage(&services.APIError{Service: services.BreakerMarketstack, StatusCode: status})
	}
	return result, nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
