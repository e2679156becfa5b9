package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PriceTargets holds the workflow's price objectives per horizon
type PriceTargets struct {
	ShortTerm  string `json:"short_term"`
	MediumTerm string `json:"medium_term"`
	LongTerm   string `json:"long_term"`
}

// Prediction is the structured multi-indicator analysis for one symbol.
// Up, Down and Neutral are percentages used relatively; they are not required to sum to 100.
type Prediction struct {
	Up      float64 `json:"up"`
	Down    float64 `json:"down"`
	Neutral float64 `json:"neutral"`

	KeyFibonacciLevels []string `json:"key_fibonacci_levels"`
	FractalSignals     []string `json:"fractal_signals"`
	MarketStructure    string   `json:"market_structure"`

	RSIAnalysis      []string `json:"rsi_analysis,omitempty"`
	MACDAnalysis     []string `json:"macd_analysis,omitempty"`
	ElliottWave      []string `json:"elliott_wave,omitempty"`
	VolumeProfile    []string `json:"volume_profile,omitempty"`
	IchimokuSignals  []string `json:"ichimoku_signals,omitempty"`
	HarmonicPatterns []string `json:"harmonic_patterns,omitempty"`

	PriceTargets *PriceTargets `json:"price_targets,omitempty"`
	StockSummary *string       `json:"stock_summary,omitempty"`

	Confidence *float64 `json:"confidence,omitempty"`
	Factors    []string `json:"factors,omitempty"`
}

// Predictions maps a ticker or index symbol to its prediction
type Predictions map[string]Prediction

// Indicators returns the indicator observation lists keyed by indicator name,
// omitting indicators the workflow did not report.
func (p Prediction) Indicators() map[string][]string {
	all := map[string][]string{
		"fibonacci":         p.KeyFibonacciLevels,
		"fractal":           p.FractalSignals,
		"rsi":               p.RSIAnalysis,
		"macd":              p.MACDAnalysis,
		"elliott_wave":      p.ElliottWave,
		"volume_profile":    p.VolumeProfile,
		"ichimoku":          p.IchimokuSignals,
		"harmonic_patterns": p.HarmonicPatterns,
	}
	out := make(map[string][]string, len(all))
	for name, obs := range all {
		if len(obs) > 0 {
			out[name] = obs
		}
	}
	return out
}

// Dominant returns "up", "down" or "neutral", whichever carries the largest weight.
// Ties resolve in that order.
func (p Prediction) Dominant() string {
	switch {
	case p.Up >= p.Down && p.Up >= p.Neutral:
		return "up"
	case p.Down >= p.Neutral:
		return "down"
	default:
		return "neutral"
	}
}

// Symbols returns the symbols present in the map
func (p Predictions) Symbols() []string {
	out := make([]string, 0, len(p))
	for s := range p {
		out = append(out, s)
	}
	return out
}

// UnmarshalJSON accepts the loosely typed output of the analysis workflow:
// percentages may arrive as numeric strings ("60" or "60%") and observation
// lists may contain numbers or be a single string.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	type plain Prediction
	var aux struct {
		plain
		Up      looseNumber `json:"up"`
		Down    looseNumber `json:"down"`
		Neutral looseNumber `json:"neutral"`

		KeyFibonacciLevels looseStrings `json:"key_fibonacci_levels"`
		FractalSignals     looseStrings `json:"fractal_signals"`
		MarketStructure    looseString  `json:"market_structure"`

		RSIAnalysis      looseStrings `json:"rsi_analysis"`
		MACDAnalysis     looseStrings `json:"macd_analysis"`
		ElliottWave      looseStrings `json:"elliott_wave"`
		VolumeProfile    looseStrings `json:"volume_profile"`
		IchimokuSignals  looseStrings `json:"ichimoku_signals"`
		HarmonicPatterns looseStrings `json:"harmonic_patterns"`

		StockSummary *looseString `json:"stock_summary"`
		Confidence   *looseNumber `json:"confidence"`
		Factors      looseStrings `json:"factors"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Prediction(aux.plain)
	p.Up, p.Down, p.Neutral = float64(aux.Up), float64(aux.Down), float64(aux.Neutral)
	p.KeyFibonacciLevels = aux.KeyFibonacciLevels
	p.FractalSignals = aux.FractalSignals
	p.MarketStructure = string(aux.MarketStructure)
	p.RSIAnalysis = aux.RSIAnalysis
	p.MACDAnalysis = aux.MACDAnalysis
	p.ElliottWave = aux.ElliottWave
	p.VolumeProfile = aux.VolumeProfile
	p.IchimokuSignals = aux.IchimokuSignals
	p.HarmonicPatterns = aux.HarmonicPatterns
	p.Factors = aux.Factors
	p.StockSummary = nil
	if aux.StockSummary != nil {
		p.StockSummary = StringPtr(string(*aux.StockSummary))
	}
	p.Confidence = nil
	if aux.Confidence != nil {
		c := float64(*aux.Confidence)
		p.Confidence = &c
	}
	return nil
}

// UnmarshalJSON accepts numeric price targets as well as strings
func (t *PriceTargets) UnmarshalJSON(data []byte) error {
	var aux struct {
		ShortTerm  looseString `json:"short_term"`
		MediumTerm looseString `json:"medium_term"`
		LongTerm   looseString `json:"long_term"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = PriceTargets{
		ShortTerm:  string(aux.ShortTerm),
		MediumTerm: string(aux.MediumTerm),
		LongTerm:   string(aux.LongTerm),
	}
	return nil
}

// looseNumber decodes a JSON number, a numeric string with an optional
// percent sign, or null.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = looseNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*n = looseNumber(f)
	return nil
}

// looseString decodes a JSON string, number or boolean as text
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	v, err := scalarText(data)
	if err != nil {
		return err
	}
	*s = looseString(v)
	return nil
}

// looseStrings decodes an array of scalars, or a single scalar, as a string list
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		v, err := scalarText(trimmed)
		if err != nil {
			return err
		}
		*l = looseStrings{v}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	out := make(looseStrings, 0, len(items))
	for _, item := range items {
		v, err := scalarText(item)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

func scalarText(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("expected text, got %s", data)
	}
}
