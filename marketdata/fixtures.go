package marketdata

import (
	"time"

	"github.com/shopspring/decimal"

	"market-dashboard/models"
)

// IndexSymbols are the market indices shown on the dashboard.
// Their fixtures carry tracking ETF prices, matching what the provider returns.
var IndexSymbols = []string{"^DJI", "^GSPC", "^IXIC"}

// StockSymbols are the popular stocks shown on the dashboard
var StockSymbols = []string{"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "NVDA", "NFLX"}

var fixtureDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func fixture(symbol, open, high, low, close string, volume int64, exchange string) models.Quote {
	return models.Quote{
		Symbol:   symbol,
		Open:     decimal.RequireFromString(open),
		High:     decimal.RequireFromString(high),
		Low:      decimal.RequireFromString(low),
		Close:    decimal.RequireFromString(close),
		Volume:   volume,
		Date:     fixtureDate,
		Exchange: exchange,
	}
}

var indexFixtures = []models.Quote{
	fixture("^DJI", "387.15", "389.22", "386.01", "389.06", 4120000, "NYSE ARCA"),
	fixture("^GSPC", "512.34", "513.69", "510.44", "511.71", 74650000, "NYSE ARCA"),
	fixture("^IXIC", "434.87", "437.92", "432.15", "436.12", 48210000, "NASDAQ"),
}

var stockFixtures = []models.Quote{
	fixture("AAPL", "171.17", "172.62", "170.29", "172.62", 121750000, "NASDAQ"),
	fixture("MSFT", "419.29", "422.60", "412.79", "416.42", 45050000, "NASDAQ"),
	fixture("AMZN", "176.64", "177.93", "173.90", "174.42", 72120000, "NASDAQ"),
	fixture("GOOGL", "143.41", "144.34", "141.13", "141.18", 41020000, "NASDAQ"),
	fixture("META", "492.96", "497.26", "483.65", "484.10", 14620000, "NASDAQ"),
	fixture("TSLA", "163.16", "165.18", "160.76", "163.57", 96970000, "NASDAQ"),
	fixture("NVDA", "869.30", "895.46", "862.57", "878.37", 64020000, "NASDAQ"),
	fixture("NFLX", "611.00", "614.49", "601.82", "605.88", 3510000, "NASDAQ"),
}

// IndexFixtures returns the canned index quotes
func IndexFixtures() []models.Quote {
	return cloneQuotes(indexFixtures)
}

// StockFixtures returns the canned stock quotes
func StockFixtures() []models.Quote {
	return cloneQuotes(stockFixtures)
}

// Fixture returns the canned quote for symbol, if one exists
func Fixture(symbol string) (models.Quote, bool) {
	if q, ok := models.FindQuote(indexFixtures, symbol); ok {
		return q, true
	}
	return models.FindQuote(stockFixtures, symbol)
}

// FixturesFor returns one record per symbol, using placeholders where no fixture exists
func FixturesFor(symbols []string, now time.Time) []models.Quote {
	out := make([]models.Quote, 0, len(symbols))
	for _, s := range symbols {
		if q, ok := Fixture(s); ok {
			out = append(out, q)
			continue
		}
		out = append(out, PlaceholderQuote(s, now))
	}
	return out
}

// PlaceholderQuote returns the synthetic record used when neither live data nor a fixture exists
func PlaceholderQuote(symbol string, now time.Time) models.Quote {
	return models.Quote{
		Symbol: symbol,
		Open:   decimal.NewFromInt(100),
		High:   decimal.NewFromInt(103),
		Low:    decimal.NewFromInt(99),
		Close:  decimal.NewFromInt(102),
		Volume: 1000000,
		Date:   now,
	}
}

func cloneQuotes(in []models.Quote) []models.Quote {
	out := make([]models.Quote, len(in))
	copy(out, in)
	return out
}
