package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Upstream workflows and the browser expect plain JSON numbers for prices.
	decimal.MarshalJSONWithoutQuotes = true
}

// DataSource tells the dashboard whether its data came from live providers or fixtures
type DataSource string

const (
	DataSourceLive DataSource = "live"
	DataSourceMock DataSource = "mock"
)

// Quote represents end-of-day OHLCV data for a single symbol
type Quote struct {
	Symbol   string          `json:"symbol"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   int64           `json:"volume"`
	Date     time.Time       `json:"date"`
	Exchange string          `json:"exchange,omitempty"`
}

// Change returns close minus open
func (q Quote) Change() decimal.Decimal {
	return q.Close.Sub(q.Open)
}

// ChangePercent returns the session change as a percentage of the open price
func (q Quote) ChangePercent() decimal.Decimal {
	if q.Open.IsZero() {
		return decimal.Zero
	}
	return q.Change().Div(q.Open).Mul(decimal.NewFromInt(100))
}

// IsPositive reports whether the session closed at or above its open
func (q Quote) IsPositive() bool {
	return !q.Change().IsNegative()
}

// FindQuote returns the quote for symbol from quotes, if present
func FindQuote(quotes []Quote, symbol string) (Quote, bool) {
	for _, q := range quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}
