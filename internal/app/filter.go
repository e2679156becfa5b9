package app

import (
	"strings"

	"market-dashboard/models"
)

// AnalysisFilter narrows the dataset sent for market analysis.
// The zero value sends everything.
type AnalysisFilter struct {
	Symbols     []string `json:"symbols,omitempty"`
	NewsSources []string `json:"news_sources,omitempty"`
	// IncludeNews defaults to true when nil
	IncludeNews *bool  `json:"include_news,omitempty"`
	TimeRange   string `json:"time_range,omitempty"`
}

var validTimeRanges = map[string]bool{"1d": true, "1w": true, "1m": true, "3m": true, "1y": true}

// Validate checks the time range against the supported set
func (f AnalysisFilter) Validate() error {
	if f.TimeRange != "" && !validTimeRanges[f.TimeRange] {
		return &FilterError{Field: "time_range", Value: f.TimeRange}
	}
	return nil
}

// FilterError reports an unsupported filter value
type FilterError struct {
	Field string
	Value string
}

func (e *FilterError) Error() string {
	return "unsupported " + e.Field + ": " + e.Value
}

func (f AnalysisFilter) includeNews() bool {
	return f.IncludeNews == nil || *f.IncludeNews
}

func (f AnalysisFilter) quotes(in []models.Quote) []models.Quote {
	out := make([]models.Quote, 0, len(in))
	if len(f.Symbols) == 0 {
		return append(out, in...)
	}
	want := make(map[string]bool, len(f.Symbols))
	for _, s := range f.Symbols {
		want[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	for _, q := range in {
		if want[q.Symbol] {
			out = append(out, q)
		}
	}
	return out
}

func (f AnalysisFilter) news(in []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(in))
	if !f.includeNews() {
		return out
	}
	if len(f.NewsSources) == 0 {
		return append(out, in...)
	}
	want := make(map[string]bool, len(f.NewsSources))
	for _, s := range f.NewsSources {
		want[s] = true
	}
	for _, n := range in {
		if want[n.Source] {
			out = append(out, n)
		}
	}
	return out
}
