// Package app holds the dashboard controller: it loads quotes and news,
// keeps them fresh on a schedule, and runs the two analysis workflows.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"market-dashboard/analysis"
	"market-dashboard/marketdata"
	"market-dashboard/models"
	"market-dashboard/news"
	"market-dashboard/observability"
	"market-dashboard/services"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	// ErrAnalysisInProgress is returned when the same analysis is already running
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrNoPrediction is returned when a stock reply lacks the requested symbol
	ErrNoPrediction = errors.New("no prediction for symbol")
	// ErrInvalidSymbol is returned for an empty symbol
	ErrInvalidSymbol = errors.New("symbol is required")
	// ErrHistoryUnavailable is returned when no repository is configured
	ErrHistoryUnavailable = errors.New("analysis history not configured")
	// ErrNoQuote is returned when no record could be produced for a symbol
	ErrNoQuote = errors.New("no data available for symbol")
	// ErrRunNotFound is returned for an unknown analysis run id
	ErrRunNotFound = errors.New("analysis run not found")
)

// Banner texts shown in the analysis error slots
const (
	msgWorkflowFailed  = "Failed to get prediction results. Please try again later."
	msgUnexpectedShape = "Error parsing AI response. Unexpected format."
	msgUnrecognized    = "Unrecognized response format"
)

// isoLayout matches the millisecond UTC timestamps browsers produce
const isoLayout = "2006-01-02T15:04:05.000Z"

// QuoteService is the quote lookup the controller depends on
type QuoteService interface {
	Live() bool
	Fetch(ctx context.Context, symbols []string) marketdata.FetchResult
	GetQuote(ctx context.Context, symbol string) (models.Quote, bool)
	TestProvider(ctx context.Context, symbol string) (*marketdata.ProviderTest, error)
	Clear(ctx context.Context) error
}

// NewsService is the news lookup the controller depends on
type NewsService interface {
	Fetch(ctx context.Context) news.Result
}

// RepositoryInterface defines the history operations needed by the controller
type RepositoryInterface interface {
	CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error
	GetAnalysisRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error)
	GetAnalysisRuns(ctx context.Context, kind models.AnalysisKind, limit int) ([]models.AnalysisRun, error)
}

// Controller owns dashboard state. All methods are safe for concurrent use.
type Controller struct {
	quotes  QuoteService
	news    NewsService
	market  services.WebhookInterface
	stock   services.WebhookInterface
	repo    RepositoryInterface
	metrics *observability.Metrics
	now     func() time.Time

	indexSymbols []string
	stockSymbols []string
	interval     time.Duration

	mu    sync.Mutex
	state State

	refreshMu sync.Mutex

	subsMu sync.Mutex
	subs   map[chan State]struct{}
	closed bool

	cronMu sync.Mutex
	cron   *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

// Option configures a Controller
type Option func(*Controller)

// WithRepository persists every successful analysis
func WithRepository(repo RepositoryInterface) Option {
	return func(c *Controller) { c.repo = repo }
}

// WithSymbols replaces the default index and stock symbol sets
func WithSymbols(indices, stocks []string) Option {
	return func(c *Controller) {
		if len(indices) > 0 {
			c.indexSymbols = append([]string(nil), indices...)
		}
		if len(stocks) > 0 {
			c.stockSymbols = append([]string(nil), stocks...)
		}
	}
}

// WithRefreshInterval sets the scheduled refresh period
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMetrics records on m instead of the global metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a controller. Either webhook may be nil, in which case its
// action fails with services.ErrNotConfigured.
func New(quotes QuoteService, newsSvc NewsService, market, stock services.WebhookInterface, opts ...Option) *Controller {
	c := &Controller{
		quotes:       quotes,
		news:         newsSvc,
		market:       market,
		stock:        stock,
		now:          time.Now,
		indexSymbols: marketdata.IndexSymbols,
		stockSymbols: marketdata.StockSymbols,
		interval:     5 * time.Minute,
		subs:         make(map[chan State]struct{}),
		state: State{
			DataSource: models.DataSourceLive,
			Loading:    true,
			Indices:    []models.Quote{},
			Stocks:     []models.Quote{},
			News:       []models.NewsItem{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observability.GetMetrics()
	}
	return c
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// HasHistory reports whether analysis runs are persisted
func (c *Controller) HasHistory() bool {
	return c.repo != nil
}

// Start runs an initial refresh and then schedules one every interval.
// ctx bounds the scheduled refreshes. Restarting after Stop releases the
// previous run's context.
func (c *Controller) Start(ctx context.Context) error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
		c.runCtx, c.cancel = nil, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", c.interval), func() {
		if err := c.Refresh(runCtx); err != nil {
			observability.Warn("scheduled refresh fell back to fixtures", "error", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("register refresh schedule: %w", err)
	}

	c.cron = sched
	c.runCtx = runCtx
	c.cancel = cancel

	go func() {
		if err := c.Refresh(runCtx); err != nil {
			observability.Warn("initial refresh fell back to fixtures", "error", err)
		}
	}()
	sched.Start()

	observability.Info("refresh schedule started", "interval", c.interval.String())
	return nil
}

// Stop cancels the refresh schedule. Calls already in flight are left to finish.
func (c *Controller) Stop() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron == nil {
		return
	}
	c.cron.Stop()
	c.cron = nil
	observability.Info("refresh schedule stopped")
}

// Shutdown stops the schedule and aborts any in-flight scheduled refresh
func (c *Controller) Shutdown() {
	c.Stop()
	c.cronMu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.runCtx, c.cancel = nil, nil
	}
	c.cronMu.Unlock()

	c.subsMu.Lock()
	c.closed = true
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.subsMu.Unlock()
}

// Refresh reloads quotes and news. A cancelled or expired ctx switches the
// dashboard entirely to fixtures and the error is returned; provider failures
// are absorbed into the API error banner.
func (c *Controller) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.update(func(s *State) { s.Loading = true })

	indices := c.quotes.Fetch(ctx, c.indexSymbols)
	stocks := c.quotes.Fetch(ctx, c.stockSymbols)
	newsResult := c.news.Fetch(ctx)
	now := c.now()

	if err := ctx.Err(); err != nil {
		msg := err.Error()
		c.update(func(s *State) {
			s.Indices = marketdata.FixturesFor(c.indexSymbols, now)
			s.Stocks = marketdata.FixturesFor(c.stockSymbols, now)
			s.News = news.Fixtures(now)
			s.NewsSource = news.SourceFixtures
			s.DataSource = models.DataSourceMock
			s.APIError = &msg
			s.Loading = false
			s.LastRefresh = &now
		})
		c.metrics.RecordRefresh(string(models.DataSourceMock))
		observability.Warn("refresh aborted, showing fixtures", "error", err)
		return fmt.Errorf("refresh: %w", err)
	}

	source := models.DataSourceLive
	var apiError *string
	switch {
	case !c.quotes.Live():
		source = models.DataSourceMock
	case indices.AllFallback() && stocks.AllFallback():
		source = models.DataSourceMock
		if err := firstError(indices, stocks); err != nil {
			msg := services.UserMessage(err)
			apiError = &msg
		}
	}

	c.update(func(s *State) {
		s.Indices = indices.Quotes
		s.Stocks = mergeStocks(stocks.Quotes, s.Stocks)
		s.News = newsResult.Items
		s.NewsSource = newsResult.Source
		s.DataSource = source
		s.APIError = apiError
		s.Loading = false
		s.LastRefresh = &now
	})
	c.metrics.RecordRefresh(string(source))

	observability.Info("dashboard refreshed",
		"data_source", source,
		"news_source", newsResult.Source,
		"live_quotes", len(indices.Live)+len(stocks.Live),
		"fallback_quotes", len(indices.Fallback)+len(stocks.Fallback))
	return nil
}

// mergeStocks keeps symbols added by stock searches after a refresh
func mergeStocks(fresh, previous []models.Quote) []models.Quote {
	out := append([]models.Quote(nil), fresh...)
	for _, q := range previous {
		if _, ok := models.FindQuote(out, q.Symbol); !ok {
			out = append(out, q)
		}
	}
	return out
}

func firstError(results ...marketdata.FetchResult) error {
	for _, r := range results {
		if err := r.FirstError(); err != nil {
			return err
		}
	}
	return nil
}

// StockRequest is the body posted to the stock workflow
type StockRequest struct {
	TargetStock string            `json:"targetStock"`
	StockData   models.Quote      `json:"stockData"`
	MarketData  []models.Quote    `json:"marketData"`
	NewsData    []models.NewsItem `json:"newsData"`
	Timestamp   string            `json:"timestamp"`
	DataSource  models.DataSource `json:"dataSource"`
}

// AnalyzeStock sends one symbol with its market and news context to the stock
// workflow and stores the returned prediction.
func (c *Controller) AnalyzeStock(ctx context.Context, symbol string) (*models.Prediction, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, ErrInvalidSymbol
	}

	c.mu.Lock()
	if c.state.Stock.Loading {
		c.mu.Unlock()
		return nil, ErrAnalysisInProgress
	}
	c.state.Stock.Loading = true
	c.state.Stock.Error = nil
	c.mu.Unlock()
	c.broadcast()

	timer := c.metrics.NewTimer()
	c.metrics.RecordAnalysisRequest(string(models.AnalysisKindStock))
	log := observability.WithSymbol(sym)

	pred, shape, err := c.runStock(ctx, sym)
	if err != nil {
		timer.ObserveAnalysis(string(models.AnalysisKindStock), "error")
		log.Warn("stock analysis failed", "error", err)
		msg := stockErrorMessage(sym, err)
		c.update(func(s *State) {
			s.Stock.Loading = false
			s.Stock.Error = &msg
		})
		return nil, err
	}

	timer.ObserveAnalysis(string(models.AnalysisKindStock), "success")
	log.Info("stock analysis completed", "shape", shape, "duration_ms", timer.Duration().Milliseconds())

	var source models.DataSource
	c.update(func(s *State) {
		s.Stock.Symbol = sym
		s.Stock.Prediction = pred
		s.Stock.Loading = false
		source = s.DataSource
	})

	c.persist(ctx, models.NewAnalysisRun(models.AnalysisKindStock, sym, shape, models.Predictions{sym: *pred}, pred.StockSummary, source))
	return pred, nil
}

func (c *Controller) runStock(ctx context.Context, sym string) (*models.Prediction, string, error) {
	if c.stock == nil {
		return nil, "", fmt.Errorf("stock workflow: %w", services.ErrNotConfigured)
	}

	snap := c.Snapshot()
	quote, ok := models.FindQuote(snap.Stocks, sym)
	if !ok {
		quote, ok = c.quotes.GetQuote(ctx, sym)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrNoQuote, sym)
		}
		c.update(func(s *State) {
			if _, exists := models.FindQuote(s.Stocks, sym); !exists {
				s.Stocks = append(s.Stocks, quote)
			}
		})
	}

	req := StockRequest{
		TargetStock: sym,
		StockData:   quote,
		MarketData:  snap.Indices,
		NewsData:    models.NewsMentioning(snap.News, sym),
		Timestamp:   c.now().UTC().Format(isoLayout),
		DataSource:  snap.DataSource,
	}
	if req.MarketData == nil {
		req.MarketData = []models.Quote{}
	}

	body, err := c.stock.Post(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("stock workflow: %w", err)
	}

	result, err := analysis.Parse(body)
	c.metrics.RecordAnalysisShape(result.Shape)
	if err != nil {
		return nil, result.Shape, err
	}

	pred, ok := result.Predictions[sym]
	if !ok {
		return nil, result.Shape, fmt.Errorf("%w: %s", ErrNoPrediction, sym)
	}
	return &pred, result.Shape, nil
}

func stockErrorMessage(sym string, err error) string {
	switch {
	case errors.Is(err, ErrNoQuote):
		return fmt.Sprintf("No data available for stock symbol: %s", sym)
	case errors.Is(err, ErrNoPrediction):
		return fmt.Sprintf("Could not get analysis for symbol: %s", sym)
	case errors.Is(err, analysis.ErrUnrecognizedShape), errors.Is(err, analysis.ErrInvalidPayload):
		return msgUnrecognized
	default:
		return fmt.Sprintf("Error analyzing stock %s. Please try again.", sym)
	}
}

// MarketRequest is the body posted to the market workflow
type MarketRequest struct {
	FuturesData []models.Quote    `json:"futuresData"`
	NewsData    []models.NewsItem `json:"newsData"`
	StocksData  []models.Quote    `json:"stocksData"`
	Timestamp   string            `json:"timestamp"`
	DataSource  models.DataSource `json:"dataSource"`
	TimeRange   string            `json:"timeRange,omitempty"`
}

// AnalyzeMarket sends the (optionally filtered) dashboard dataset to the
// market workflow. On success the prediction map, summary and timestamp are
// replaced together; on failure the previous analysis stays in place.
func (c *Controller) AnalyzeMarket(ctx context.Context, filter AnalysisFilter) (*analysis.Result, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state.Market.Loading {
		c.mu.Unlock()
		return nil, ErrAnalysisInProgress
	}
	c.state.Market.Loading = true
	c.state.Market.Error = nil
	snap := c.state.clone()
	c.mu.Unlock()
	c.broadcast()

	timer := c.metrics.NewTimer()
	c.metrics.RecordAnalysisRequest(string(models.AnalysisKindMarket))

	result, err := c.runMarket(ctx, snap, filter)
	if err != nil {
		timer.ObserveAnalysis(string(models.AnalysisKindMarket), "error")
		observability.Warn("market analysis failed", "error", err)
		msg := marketErrorMessage(err)
		c.update(func(s *State) {
			s.Market.Loading = false
			s.Market.Error = &msg
		})
		return nil, err
	}

	timer.ObserveAnalysis(string(models.AnalysisKindMarket), "success")
	observability.Info("market analysis completed",
		"shape", result.Shape,
		"symbols", len(result.Predictions),
		"duration_ms", timer.Duration().Milliseconds())

	stamp := result.Timestamp
	if stamp == nil {
		stamp = models.StringPtr(c.now().UTC().Format(isoLayout))
	}
	c.update(func(s *State) {
		s.Market.Predictions = result.Predictions
		s.Market.Summary = result.Summary
		s.Market.Timestamp = stamp
		s.Market.Shape = result.Shape
		s.Market.Loading = false
	})

	c.persist(ctx, models.NewAnalysisRun(models.AnalysisKindMarket, "", result.Shape, result.Predictions, result.Summary, snap.DataSource))
	return result, nil
}

func (c *Controller) runMarket(ctx context.Context, snap State, filter AnalysisFilter) (*analysis.Result, error) {
	if c.market == nil {
		return nil, fmt.Errorf("market workflow: %w", services.ErrNotConfigured)
	}

	req := MarketRequest{
		FuturesData: filter.quotes(snap.Indices),
		NewsData:    filter.news(snap.News),
		StocksData:  filter.quotes(snap.Stocks),
		Timestamp:   c.now().UTC().Format(isoLayout),
		DataSource:  snap.DataSource,
		TimeRange:   filter.TimeRange,
	}

	body, err := c.market.Post(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("market workflow: %w", err)
	}

	result, err := analysis.Parse(body)
	c.metrics.RecordAnalysisShape(result.Shape)
	if err != nil {
		return nil, err
	}
	if len(result.Skipped) > 0 {
		observability.Warn("market analysis dropped malformed predictions", "symbols", result.Skipped)
	}
	return result, nil
}

func marketErrorMessage(err error) string {
	switch {
	case errors.Is(err, analysis.ErrUnrecognizedShape):
		return msgUnrecognized
	case errors.Is(err, analysis.ErrInvalidPayload):
		return msgUnexpectedShape
	default:
		return msgWorkflowFailed
	}
}

// DismissErrors clears the API and analysis error banners
func (c *Controller) DismissErrors() {
	c.update(func(s *State) {
		s.APIError = nil
		s.Market.Error = nil
		s.Stock.Error = nil
	})
}

// Quotes returns one quote per requested symbol
func (c *Controller) Quotes(ctx context.Context, symbols []string) []models.Quote {
	return c.quotes.Fetch(ctx, symbols).Quotes
}

// Quote returns the quote for a single symbol
func (c *Controller) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return models.Quote{}, ErrInvalidSymbol
	}
	q, ok := c.quotes.GetQuote(ctx, sym)
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, sym)
	}
	return q, nil
}

// ClearQuoteCache drops every cached quote
func (c *Controller) ClearQuoteCache(ctx context.Context) error {
	if err := c.quotes.Clear(ctx); err != nil {
		return fmt.Errorf("clear quote cache: %w", err)
	}
	observability.Info("quote cache cleared")
	return nil
}

// TestQuoteProvider performs a raw, uncached provider call for symbol
func (c *Controller) TestQuoteProvider(ctx context.Context, symbol string) (*marketdata.ProviderTest, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, ErrInvalidSymbol
	}
	return c.quotes.TestProvider(ctx, sym)
}

// AnalysisRuns returns persisted analysis history, newest first
func (c *Controller) AnalysisRuns(ctx context.Context, kind models.AnalysisKind, limit int) ([]models.AnalysisRun, error) {
	if c.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	return c.repo.GetAnalysisRuns(ctx, kind, limit)
}

// AnalysisRun returns one persisted analysis run
func (c *Controller) AnalysisRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	if c.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	run, err := c.repo.GetAnalysisRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (c *Controller) persist(ctx context.Context, run *models.AnalysisRun) {
	if c.repo == nil {
		return
	}
	run.CreatedAt = c.now()
	if err := c.repo.CreateAnalysisRun(context.WithoutCancel(ctx), run); err != nil {
		observability.Warn("failed to persist analysis run",
			"kind", run.Kind,
			"symbol", run.Symbol,
			"error", err)
	}
}

// update applies fn to the state under lock and notifies subscribers
func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.broadcast()
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Only the latest snapshot is kept for a slow reader. Call the returned
// function to unsubscribe.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	ch <- c.Snapshot()

	c.subsMu.Lock()
	if c.closed {
		c.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
			c.subsMu.Unlock()
		})
	}
}

func (c *Controller) broadcast() {
	snap := c.Snapshot()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot and deliver the newest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
