package app

import (
	"time"

	"market-dashboard/models"
)

// State is everything the dashboard renders
type State struct {
	Indices    []models.Quote    `json:"indices"`
	Stocks     []models.Quote    `json:"stocks"`
	News       []models.NewsItem `json:"news"`
	NewsSource string            `json:"news_source"`
	DataSource models.DataSource `json:"data_source"`

	// APIError is set when live data could not be loaded and fixtures are shown.
	APIError    *string    `json:"api_error"`
	Loading     bool       `json:"loading"`
	LastRefresh *time.Time `json:"last_refresh"`

	Market MarketAnalysis `json:"market_analysis"`
	Stock  StockAnalysis  `json:"stock_analysis"`
}

// MarketAnalysis is the latest market-wide prediction and its action status
type MarketAnalysis struct {
	Predictions models.Predictions `json:"predictions"`
	Summary     *string            `json:"summary"`
	Timestamp   *string            `json:"timestamp"`
	Shape       string             `json:"shape,omitempty"`
	Loading     bool               `json:"loading"`
	Error       *string            `json:"error"`
}

// StockAnalysis is the latest single-symbol prediction and its action status
type StockAnalysis struct {
	Symbol     string             `json:"symbol,omitempty"`
	Prediction *models.Prediction `json:"prediction"`
	Loading    bool               `json:"loading"`
	Error      *string            `json:"error"`
}

func (s State) clone() State {
	out := s
	out.Indices = append([]models.Quote(nil), s.Indices...)
	out.Stocks = append([]models.Quote(nil), s.Stocks...)
	out.News = append([]models.NewsItem(nil), s.News...)
	if s.LastRefresh != nil {
		t := *s.LastRefresh
		out.LastRefresh = &t
	}
	if s.Market.Predictions != nil {
		out.Market.Predictions = make(models.Predictions, len(s.Market.Predictions))
		for k, v := range s.Market.Predictions {
			out.Market.Predictions[k] = v
		}
	}
	if s.Stock.Prediction != nil {
		p := *s.Stock.Prediction
		out.Stock.Prediction = &p
	}
	return out
}
