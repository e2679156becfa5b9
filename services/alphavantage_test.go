package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewAlphaVantageService(t *testing.T) {
	service := NewAlphaVantageService("test-api-key")
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.baseURL != "https://www.alphavantage.co/query" {
		t.Errorf("baseURL = %v, want alphavantage query endpoint", service.baseURL)
	}
}

func TestAlphaVantageService_GetMarketNews(t *testing.T) {
	var gotQuery string
	_, opts := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"items": "2",
			"feed": [
				{
					"title": "Stocks climb as yields ease",
					"url": "https://example.com/a",
					"time_published": "20240315T133000",
					"summary": "NVDA and AAPL led gains.",
					"banner_image": "https://example.com/a.jpg",
					"source": "Reuters",
					"category_within_source": "Markets",
					"overall_sentiment_label": "Somewhat-Bullish"
				},
				{
					"title": "",
					"url": "https://example.com/b",
					"time_published": "not-a-time",
					"summary": "",
					"banner_image": "null",
					"source": ""
				}
			]
		}`))
	})

	items, err := NewAlphaVantageService("av-key", opts...).GetMarketNews(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"function=NEWS_SENTIMENT", "topics=financial_markets", "apikey=av-key"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Source != "Reuters" {
		t.Errorf("Source = %s, want Reuters", first.Source)
	}
	if first.Sentiment == nil || *first.Sentiment != "Somewhat-Bullish" {
		t.Errorf("Sentiment = %v", first.Sentiment)
	}
	if first.Image == nil || *first.Image != "https://example.com/a.jpg" {
		t.Errorf("Image = %v", first.Image)
	}
	want := time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", first.Timestamp, want)
	}

	second := items[1]
	if second.Title != "No Title" || second.Summary != "No Description" {
		t.Errorf("defaults not applied: %+v", second)
	}
	if second.Source != "Alpha Vantage" {
		t.Errorf("Source = %s, want Alpha Vantage", second.Source)
	}
	if second.Image != nil {
		t.Errorf("literal null image should be absent, got %v", *second.Image)
	}
	if second.Sentiment != nil {
		t.Errorf("missing sentiment should be nil, got %v", *second.Sentiment)
	}
	if time.Since(second.Timestamp) > time.Minute {
		t.Errorf("unparseable time should fall back to now, got %v", second.Timestamp)
	}
}

func TestAlphaVantageService_LimitsToTen(t *testing.T) {
	_, opts := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		entries := make([]string, 15)
		for i := range entries {
			entries[i] = fmt.Sprintf(`{"title":"story %d","time_published":"20240315T090000"}`, i)
		}
		fmt.Fprintf(w, `{"feed":[%s]}`, strings.Join(entries, ","))
	})

	items, err := NewAlphaVantageService("k", opts...).GetMarketNews(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("expected 10 items, got %d", len(items))
	}
}

func TestAlphaVantageService_MissingFeed(t *testing.T) {
	_, opts := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Information":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	})

	_, err := NewAlphaVantageService("k", opts...).GetMarketNews(context.Background())
	if KindOf(err) != KindPayload {
		t.Fatalf("expected payload error, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("expected upstream information in error, got %v", err)
	}
}

func TestAlphaVantageService_NotConfigured(t *testing.T) {
	if NewAlphaVantageService("").IsConfigured() {
		t.Error("service without key should not be configured")
	}
}
