package marketdata

import "sort"

// SymbolPair maps a dashboard symbol onto the ticker the quote provider understands
type SymbolPair struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Provider string `yaml:"provider" json:"provider"`
}

// DefaultSymbolPairs maps index symbols to tracking ETFs and futures contracts
// to their root tickers. Order matters for Inverse.
var DefaultSymbolPairs = []SymbolPair{
	{Symbol: "^DJI", Provider: "DIA"},
	{Symbol: "^GSPC", Provider: "SPY"},
	{Symbol: "^IXIC", Provider: "QQQ"},
	{Symbol: "ES=F", Provider: "ES"},
	{Symbol: "YM=F", Provider: "YM"},
	{Symbol: "NQ=F", Provider: "NQ"},
}

// Mapper converts between dashboard symbols and provider symbols
type Mapper struct {
	pairs   []SymbolPair
	forward map[string]string
}

// NewMapper builds a mapper from the default table followed by extra pairs.
// Extra pairs are appended in key order and never override a default entry.
func NewMapper(extra map[string]string) *Mapper {
	m := &Mapper{forward: make(map[string]string, len(DefaultSymbolPairs)+len(extra))}
	for _, p := range DefaultSymbolPairs {
		m.add(p)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.add(SymbolPair{Symbol: k, Provider: extra[k]})
	}

	return m
}

func (m *Mapper) add(p SymbolPair) {
	if p.Symbol == "" || p.Provider == "" {
		return
	}
	if _, exists := m.forward[p.Symbol]; exists {
		return
	}
	m.forward[p.Symbol] = p.Provider
	m.pairs = append(m.pairs, p)
}

// Convert returns the provider symbol for symbol, or symbol itself when unmapped
func (m *Mapper) Convert(symbol string) string {
	if provider, ok := m.forward[symbol]; ok {
		return provider
	}
	return symbol
}

// Inverse returns the first dashboard symbol in table order that maps to
// providerSymbol, or providerSymbol itself when none does.
func (m *Mapper) Inverse(providerSymbol string) string {
	for _, p := range m.pairs {
		if p.Provider == providerSymbol {
			return p.Symbol
		}
	}
	return providerSymbol
}

// Pairs returns a copy of the mapping table in order
func (m *Mapper) Pairs() []SymbolPair {
	out := make([]SymbolPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}
