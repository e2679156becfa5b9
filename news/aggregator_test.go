package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/models"
	"market-dashboard/observability"
	"market-dashboard/services"
)

type stubPrimary struct {
	key   string
	calls int
	items []models.NewsItem
	err   error
}

func (s *stubPrimary) IsConfigured() bool { return s.key != "" }
func (s *stubPrimary) GetMarketNews(context.Context) ([]models.NewsItem, error) {
	s.calls++
	return s.items, s.err
}

type stubSecondary struct {
	key   string
	calls int
	items []models.NewsItem
	err   error
}

func (s *stubSecondary) IsConfigured() bool { return s.key != "" }
func (s *stubSecondary) GetTopHeadlines(context.Context) ([]models.NewsItem, error) {
	s.calls++
	return s.items, s.err
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func TestAggregator_PrefersPrimary(t *testing.T) {
	primary := &stubPrimary{key: "av", items: []models.NewsItem{{Title: "from av"}}}
	secondary := &stubSecondary{key: "na", items: []models.NewsItem{{Title: "from newsapi"}}}
	a := NewAggregator(primary, secondary, WithMetrics(testMetrics()))

	res := a.Fetch(context.Background())

	assert.Equal(t, SourceAlphaVantage, res.Source)
	assert.Equal(t, "from av", res.Items[0].Title)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestAggregator_SecondaryOnlyNeverCallsPrimary(t *testing.T) {
	primary := &stubPrimary{}
	secondary := &stubSecondary{key: "na", items: []models.NewsItem{{Title: "from newsapi"}}}
	a := NewAggregator(primary, secondary, WithMetrics(testMetrics()))

	items := a.GetFinancialNews(context.Background())

	assert.Equal(t, SourceNewsAPI, a.Source())
	assert.Zero(t, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	require.Len(t, items, 1)
}

func TestAggregator_SecondaryOnlyOverHTTP(t *testing.T) {
	var primaryHits, secondaryHits int32
	primaryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryHits, 1)
		w.Write([]byte(`{"feed":[]}`))
	}))
	defer primaryServer.Close()
	secondaryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondaryHits, 1)
		w.Write([]byte(`{"status":"ok","articles":[{"source":{"name":"Reuters"},"title":"Headline","description":"d","url":"u","publishedAt":"2024-03-15T10:00:00Z"}]}`))
	}))
	defer secondaryServer.Close()

	breakers := services.WithCircuitBreakers(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))
	primary := services.NewAlphaVantageService("", services.WithBaseURL(primaryServer.URL), breakers)
	secondary := services.NewNewsAPIService("key", services.WithBaseURL(secondaryServer.URL), breakers)
	a := NewAggregator(primary, secondary, WithMetrics(testMetrics()))

	items := a.GetFinancialNews(context.Background())

	assert.Zero(t, atomic.LoadInt32(&primaryHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondaryHits))
	require.Len(t, items, 1)
	assert.Equal(t, "Reuters", items[0].Source)
}

func TestAggregator_NoKeysUsesFixtures(t *testing.T) {
	now := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)
	m := testMetrics()
	a := NewAggregator(&stubPrimary{}, nil, WithClock(func() time.Time { return now }), WithMetrics(m))

	res := a.Fetch(context.Background())

	assert.Equal(t, SourceFixtures, res.Source)
	assert.NoError(t, res.Err)
	assert.Equal(t, Fixtures(now), res.Items)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NewsFetchesTotal.WithLabelValues(SourceFixtures)))
}

func TestAggregator_FailureFallsBackToFixtures(t *testing.T) {
	primary := &stubPrimary{key: "av", err: &services.APIError{Service: "alphavantage", StatusCode: 500}}
	secondary := &stubSecondary{key: "na"}
	a := NewAggregator(primary, secondary, WithMetrics(testMetrics()))

	res := a.Fetch(context.Background())

	assert.Equal(t, SourceFixtures, res.Source)
	assert.NotEmpty(t, res.Items)
	assert.Zero(t, secondary.calls, "a failing primary does not fall through to the secondary")
	assert.Equal(t, services.KindServer, services.KindOf(res.Err))
}

func TestAggregator_PayloadErrorFallsBack(t *testing.T) {
	a := NewAggregator(nil, &stubSecondary{key: "na", err: errors.New("missing articles")}, WithMetrics(testMetrics()))

	items := a.GetFinancialNews(context.Background())
	assert.Len(t, items, len(fixtureItems))
}

func TestFixtures(t *testing.T) {
	now := time.Now()
	items := Fixtures(now)

	require.NotEmpty(t, items)
	for _, item := range items {
		assert.NotEmpty(t, item.Title)
		assert.NotEmpty(t, item.Summary)
		assert.True(t, item.Timestamp.Before(now))
	}
	assert.NotEmpty(t, models.NewsMentioning(items, "NVDA"))
}
