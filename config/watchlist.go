package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Watchlist overrides the dashboard symbol sets. Empty lists keep the defaults.
type Watchlist struct {
	Indices   []string          `yaml:"indices"`
	Stocks    []string          `yaml:"stocks"`
	SymbolMap map[string]string `yaml:"symbol_map"`
}

// LoadWatchlist reads a watchlist YAML file. A missing file yields an empty watchlist.
func LoadWatchlist(path string) (*Watchlist, error) {
	wl := &Watchlist{}
	if path == "" {
		return wl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, wl); err != nil {
			return nil, fmt.Errorf("parse watchlist: %w", err)
		}
	}

	wl.Indices = normalizeSymbols(wl.Indices)
	wl.Stocks = normalizeSymbols(wl.Stocks)

	mapped := make(map[string]string, len(wl.SymbolMap))
	for k, v := range wl.SymbolMap {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		mapped[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	wl.SymbolMap = mapped

	return wl, nil
}

// IndicesOr returns the configured indices, or fallback when none are set.
func (w *Watchlist) IndicesOr(fallback []string) []string {
	if w == nil || len(w.Indices) == 0 {
		return fallback
	}
	return w.Indices
}

// StocksOr returns the configured stocks, or fallback when none are set.
func (w *Watchlist) StocksOr(fallback []string) []string {
	if w == nil || len(w.Stocks) == 0 {
		return fallback
	}
	return w.Stocks
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
