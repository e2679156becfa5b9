//go:build e2e
// +build e2e

package scenarios

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"market-dashboard/e2e"
	"market-dashboard/e2e/mocks"
	"market-dashboard/internal/app"
	"market-dashboard/marketdata"
	"market-dashboard/models"
	"market-dashboard/news"
)

func setup(t *testing.T, opts ...e2e.Option) *e2e.TestHarness {
	t.Helper()
	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(opts...); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func dashboard(t *testing.T, harness *e2e.TestHarness) app.State {
	t.Helper()
	resp := harness.DoRequest(http.MethodGet, "/api/dashboard", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var state app.State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode dashboard: %v", err)
	}
	return state
}

func TestDashboard_LiveData(t *testing.T) {
	harness := setup(t)
	state := dashboard(t, harness)

	if state.DataSource != models.DataSourceLive {
		t.Errorf("expected live data source, got %s", state.DataSource)
	}
	if state.APIError != nil {
		t.Errorf("expected no API error, got %s", *state.APIError)
	}

	t.Run("indices are fetched through their ETF proxies", func(t *testing.T) {
		q, ok := models.FindQuote(state.Indices, "^DJI")
		if !ok {
			t.Fatal("expected ^DJI quote")
		}
		if q.Close.StringFixed(2) != "389.12" {
			t.Errorf("expected ^DJI close from DIA bar, got %s", q.Close.String())
		}

		var sawDIA bool
		for _, r := range harness.MockServer().Requests(mocks.ServiceMarketstack) {
			if strings.Contains(r.Query, "symbols=DIA") {
				sawDIA = true
			}
			if strings.Contains(r.Query, "%5EDJI") {
				t.Errorf("expected caret symbol to be mapped, got query %s", r.Query)
			}
		}
		if !sawDIA {
			t.Error("expected a Marketstack request for DIA")
		}
	})

	t.Run("one quote per watched stock", func(t *testing.T) {
		if len(state.Stocks) != len(marketdata.StockSymbols) {
			t.Fatalf("expected %d stocks, got %d", len(marketdata.StockSymbols), len(state.Stocks))
		}
		for i, sym := range marketdata.StockSymbols {
			if state.Stocks[i].Symbol != sym {
				t.Errorf("stock %d: expected %s, got %s", i, sym, state.Stocks[i].Symbol)
			}
		}
	})

	t.Run("news comes from the sentiment feed", func(t *testing.T) {
		if state.NewsSource != news.SourceAlphaVantage {
			t.Errorf("expected alphavantage news, got %s", state.NewsSource)
		}
		if len(state.News) != 10 {
			t.Errorf("expected the first 10 articles, got %d", len(state.News))
		}
	})
}

func TestDashboard_QuoteCache(t *testing.T) {
	harness := setup(t)
	mock := harness.MockServer()

	mock.ClearRequestLog()
	resp := harness.DoRequest(http.MethodPost, "/api/dashboard/refresh", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if n := len(mock.Requests(mocks.ServiceMarketstack)); n != 0 {
		t.Errorf("expected cached quotes within TTL, got %d provider calls", n)
	}

	resp = harness.DoRequest(http.MethodDelete, "/api/quotes/cache", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	harness.DoRequest(http.MethodPost, "/api/dashboard/refresh", "")
	want := len(marketdata.IndexSymbols) + len(marketdata.StockSymbols)
	if n := len(mock.Requests(mocks.ServiceMarketstack)); n != want {
		t.Errorf("expected %d provider calls after clearing cache, got %d", want, n)
	}
}

func TestDashboard_ProviderAuthFailure(t *testing.T) {
	harness := setup(t)
	mock := harness.MockServer()

	mock.SetFailure(mocks.ServiceMarketstack, http.StatusUnauthorized,
		`{"error":{"code":"invalid_access_key","message":"You have not supplied a valid API Access Key."}}`)
	harness.DoRequest(http.MethodDelete, "/api/quotes/cache", "")
	harness.DoRequest(http.MethodPost, "/api/dashboard/refresh", "")

	state := dashboard(t, harness)
	if state.DataSource != models.DataSourceMock {
		t.Errorf("expected mock data source, got %s", state.DataSource)
	}
	if state.APIError == nil || *state.APIError != "API key authentication failed. Please check your API key." {
		t.Errorf("unexpected API error banner: %v", state.APIError)
	}
	if len(state.Indices) != len(marketdata.IndexSymbols) {
		t.Errorf("expected fixture indices, got %d", len(state.Indices))
	}

	resp := harness.DoRequest(http.MethodDelete, "/api/dashboard/errors", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if dashboard(t, harness).APIError != nil {
		t.Error("expected banner dismissed")
	}
}

func TestDashboard_NewsFallbacks(t *testing.T) {
	t.Run("headlines when sentiment feed is unkeyed", func(t *testing.T) {
		harness := setup(t, e2e.WithoutAlphaVantage())

		state := dashboard(t, harness)
		if state.NewsSource != news.SourceNewsAPI {
			t.Errorf("expected newsapi news, got %s", state.NewsSource)
		}
		if len(state.News) == 0 {
			t.Error("expected headlines")
		}
	})

	t.Run("fixtures when the sentiment feed is throttled", func(t *testing.T) {
		harness := setup(t)
		harness.MockServer().SetFailure(mocks.ServiceAlphaVantage, http.StatusOK,
			`{"Information":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
		harness.DoRequest(http.MethodPost, "/api/dashboard/refresh", "")

		state := dashboard(t, harness)
		if state.NewsSource != news.SourceFixtures {
			t.Errorf("expected fixture news, got %s", state.NewsSource)
		}
		if len(state.News) == 0 {
			t.Error("expected fixture items")
		}
	})

	t.Run("fixtures without any keys", func(t *testing.T) {
		harness := setup(t, e2e.WithoutProviderKeys())

		state := dashboard(t, harness)
		if state.DataSource != models.DataSourceMock {
			t.Errorf("expected mock data source, got %s", state.DataSource)
		}
		if state.APIError != nil {
			t.Errorf("expected no banner when unkeyed, got %s", *state.APIError)
		}
		if state.NewsSource != news.SourceFixtures {
			t.Errorf("expected fixture news, got %s", state.NewsSource)
		}
		if n := len(harness.MockServer().GetRequestLog()); n != 0 {
			t.Errorf("expected no upstream calls, got %d", n)
		}
	})
}

func TestDashboard_ProviderTest(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/api/provider/test?symbol=%5EIXIC", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result marketdata.ProviderTest
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.ProviderSymbol != "QQQ" {
		t.Errorf("expected provider symbol QQQ, got %s", result.ProviderSymbol)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected upstream status 200, got %d", result.StatusCode)
	}
}
