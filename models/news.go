package models

import (
	"strings"
	"time"
)

// NewsItem is a financial news article normalized from any news provider
type NewsItem struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Image     *string   `json:"image"`
	Category  *string   `json:"category,omitempty"`
	Sentiment *string   `json:"sentiment"`
}

// Mentions reports whether the symbol appears in the title or summary.
// Matching is case sensitive, symbols are expected upper case.
func (n NewsItem) Mentions(symbol string) bool {
	return strings.Contains(n.Title, symbol) || strings.Contains(n.Summary, symbol)
}

// NewsMentioning filters items down to those that mention symbol
func NewsMentioning(items []NewsItem, symbol string) []NewsItem {
	out := make([]NewsItem, 0)
	for _, item := range items {
		if item.Mentions(symbol) {
			out = append(out, item)
		}
	}
	return out
}

// StringPtr returns nil for empty strings, otherwise a pointer to s
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
