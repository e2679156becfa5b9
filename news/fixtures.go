package news

import (
	"time"

	"market-dashboard/models"
)

type fixtureItem struct {
	title, summary, url, source, sentiment string
	age                                    time.Duration
}

var fixtureItems = []fixtureItem{
	{
		title:     "Wall Street edges higher as investors await Fed decision",
		summary:   "Major indices posted modest gains with the S&P 500 and Nasdaq led by megacap technology names ahead of the central bank meeting.",
		url:       "https://example.com/news/wall-street-fed",
		source:    "Market Wire",
		sentiment: "Neutral",
		age:       45 * time.Minute,
	},
	{
		title:     "NVDA extends rally on data center demand",
		summary:   "Shares of NVDA rose for a third session as analysts raised price targets on continued AI accelerator orders.",
		url:       "https://example.com/news/nvda-rally",
		source:    "Tech Markets Daily",
		sentiment: "Bullish",
		age:       2 * time.Hour,
	},
	{
		title:     "AAPL slips after supplier warns on handset volumes",
		summary:   "AAPL traded lower after a key component supplier trimmed its outlook, citing softer smartphone demand in China.",
		url:       "https://example.com/news/aapl-supplier",
		source:    "Global Finance",
		sentiment: "Somewhat-Bearish",
		age:       3 * time.Hour,
	},
	{
		title:     "Treasury yields retreat from monthly highs",
		summary:   "The 10-year yield fell four basis points as softer inflation data eased pressure on rate-sensitive sectors.",
		url:       "https://example.com/news/treasury-yields",
		source:    "Bond Street Journal",
		sentiment: "Somewhat-Bullish",
		age:       5 * time.Hour,
	},
	{
		title:     "TSLA deliveries miss estimates amid price cuts",
		summary:   "TSLA reported quarterly deliveries below consensus, raising questions about margins after a round of price reductions.",
		url:       "https://example.com/news/tsla-deliveries",
		source:    "Auto Markets",
		sentiment: "Bearish",
		age:       8 * time.Hour,
	},
	{
		title:     "Oil steadies as supply concerns offset demand worries",
		summary:   "Crude prices held near recent levels while traders weighed production cuts against a slowing global economy.",
		url:       "https://example.com/news/oil-steadies",
		source:    "Commodity Watch",
		sentiment: "Neutral",
		age:       12 * time.Hour,
	},
}

// Fixtures returns canned financial news timestamped relative to now
func Fixtures(now time.Time) []models.NewsItem {
	items := make([]models.NewsItem, 0, len(fixtureItems))
	for _, f := range fixtureItems {
		items = append(items, models.NewsItem{
			Title:     f.title,
			Summary:   f.summary,
			URL:       f.url,
			Source:    f.source,
			Timestamp: now.Add(-f.age),
			Sentiment: models.StringPtr(f.sentiment),
		})
	}
	return items
}
