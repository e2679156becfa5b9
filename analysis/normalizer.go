// Package analysis turns analysis workflow replies into prediction maps.
//
// The workflow is an LLM pipeline, so its reply format drifts. Three shapes are
// understood: a JSON object with a predictions key, an output string with a
// fenced ```json block, and an output string with an unfenced JSON object whose
// first key is a caret-prefixed index symbol.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"market-dashboard/models"
)

var (
	// ErrUnrecognizedShape is returned when no prediction block can be located
	ErrUnrecognizedShape = errors.New("unrecognized analysis response format")
	// ErrInvalidPayload is returned when a located block is not a valid prediction map
	ErrInvalidPayload = errors.New("invalid prediction payload")
)

var (
	fencedBlock  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	embeddedHead = regexp.MustCompile(`\{\s*"\^[A-Z]+"`)
)

// Result is the normalized outcome of a workflow reply
type Result struct {
	Predictions models.Predictions `json:"predictions"`
	Summary     *string            `json:"summary"`
	Timestamp   *string            `json:"timestamp,omitempty"`
	Shape       string             `json:"shape"`
	// Skipped lists symbols whose entry could not be decoded
	Skipped []string `json:"skipped,omitempty"`
}

// Classify determines which shape raw is in without decoding predictions from
// text payloads.
func Classify(raw []byte) Shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Unrecognized{Reason: "empty response"}
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return classifyText(string(trimmed))
	}

	// Some workflow nodes wrap their item in a one-element array.
	if arr, ok := doc.([]any); ok && len(arr) == 1 {
		doc = arr[0]
	}

	if text, ok := doc.(string); ok {
		return classifyText(text)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Unrecognized{Reason: fmt.Sprintf("expected JSON object, got %T", doc)}
	}

	if rawPreds, ok := obj["predictions"]; ok {
		if _, ok := rawPreds.(map[string]any); !ok {
			return Unrecognized{Reason: "predictions field is not a symbol map"}
		}
		payload, err := json.Marshal(rawPreds)
		if err != nil {
			return Unrecognized{Reason: fmt.Sprintf("re-encode predictions: %v", err)}
		}
		return DirectShape{
			Payload:   payload,
			Summary:   optionalString(obj["summary"]),
			Timestamp: optionalString(obj["timestamp"]),
		}
	}

	if output, ok := obj["output"].(string); ok {
		return classifyText(output)
	}

	return Unrecognized{Reason: "object has neither predictions nor output"}
}

func classifyText(text string) Shape {
	if m := fencedBlock.FindStringSubmatchIndex(text); m != nil {
		return FencedShape{
			Payload: []byte(text[m[2]:m[3]]),
			Summary: models.StringPtr(strings.TrimSpace(text[m[1]:])),
		}
	}

	loc := embeddedHead.FindStringIndex(text)
	if loc == nil {
		return Unrecognized{Reason: "no prediction block found in output"}
	}

	end := matchBraces(text, loc[0])
	if end < 0 {
		return Unrecognized{Reason: "unbalanced braces in embedded prediction block"}
	}

	return EmbeddedShape{
		Payload: []byte(text[loc[0]:end]),
		Summary: models.StringPtr(strings.TrimSpace(text[end:])),
	}
}

// Parse classifies raw and decodes its predictions. On failure it returns a
// result holding an empty prediction map together with the error; callers are
// expected to keep whatever predictions they displayed before.
func Parse(raw []byte) (*Result, error) {
	shape := Classify(raw)

	switch s := shape.(type) {
	case DirectShape:
		res, err := fromPayload(s.Name(), s.Payload, s.Summary)
		if err == nil {
			res.Timestamp = s.Timestamp
		}
		return res, err
	case FencedShape:
		return fromPayload(s.Name(), s.Payload, s.Summary)
	case EmbeddedShape:
		return fromPayload(s.Name(), s.Payload, s.Summary)
	case Unrecognized:
		return emptyResult(s.Name()), fmt.Errorf("%w: %s", ErrUnrecognizedShape, s.Reason)
	default:
		return emptyResult(ShapeUnrecognized), fmt.Errorf("%w: unexpected shape %T", ErrUnrecognizedShape, shape)
	}
}

func fromPayload(shape string, payload []byte, summary *string) (*Result, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return emptyResult(shape), fmt.Errorf("%w: %s block: %v", ErrInvalidPayload, shape, err)
	}

	// Tolerate a block that repeats the direct envelope.
	if inner, ok := doc["predictions"]; ok {
		doc = nil
		if err := json.Unmarshal(inner, &doc); err != nil {
			return emptyResult(shape), fmt.Errorf("%w: %s block: predictions: %v", ErrInvalidPayload, shape, err)
		}
	}

	preds, skipped, err := decodePredictions(doc)
	if err != nil {
		return emptyResult(shape), fmt.Errorf("%w: %s block: %v", ErrInvalidPayload, shape, err)
	}

	return &Result{Predictions: preds, Summary: summary, Shape: shape, Skipped: skipped}, nil
}

// decodePredictions decodes each symbol on its own so one malformed entry
// only drops that symbol. It fails when no symbol could be decoded.
func decodePredictions(doc map[string]json.RawMessage) (models.Predictions, []string, error) {
	preds := make(models.Predictions, len(doc))
	var skipped []string
	var errs []error
	for symbol, raw := range doc {
		var p models.Prediction
		if err := json.Unmarshal(raw, &p); err != nil {
			skipped = append(skipped, symbol)
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		preds[symbol] = p
	}
	sort.Strings(skipped)

	if len(preds) == 0 && len(errs) > 0 {
		return nil, skipped, errors.Join(errs...)
	}
	return preds, skipped, nil
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return models.StringPtr(s)
}

func emptyResult(shape string) *Result {
	return &Result{Predictions: models.Predictions{}, Shape: shape}
}
