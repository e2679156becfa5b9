package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisKind distinguishes the two analysis workflows
type AnalysisKind string

const (
	AnalysisKindMarket AnalysisKind = "market"
	AnalysisKindStock  AnalysisKind = "stock"
)

// AnalysisRun is a persisted record of one successful workflow analysis
type AnalysisRun struct {
	ID          uuid.UUID    `json:"id"`
	Kind        AnalysisKind `json:"kind"`
	Symbol      string       `json:"symbol,omitempty"`
	Shape       string       `json:"shape"`
	Predictions Predictions  `json:"predictions"`
	Summary     *string      `json:"summary,omitempty"`
	DataSource  DataSource   `json:"data_source"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewAnalysisRun creates a run stamped with a fresh ID and the current time
func NewAnalysisRun(kind AnalysisKind, symbol, shape string, predictions Predictions, summary *string, source DataSource) *AnalysisRun {
	return &AnalysisRun{
		ID:          uuid.New(),
		Kind:        kind,
		Symbol:      symbol,
		Shape:       shape,
		Predictions: predictions,
		Summary:     summary,
		DataSource:  source,
		CreatedAt:   time.Now(),
	}
}
