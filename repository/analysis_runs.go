package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"market-dashboard/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const analysisRunsTable = "analysis_runs"

const analysisRunColumns = `id, kind, symbol, shape, predictions, summary, data_source, created_at`

// MaxAnalysisRuns caps a single history query
const MaxAnalysisRuns = 200

// CreateAnalysisRun stores a completed analysis
func (r *Repository) CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error {
	timer := r.metrics.NewTimer()
	defer timer.ObserveDB("insert", analysisRunsTable)

	predictions, err := json.Marshal(run.Predictions)
	if err != nil {
		return fmt.Errorf("failed to marshal predictions: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO analysis_runs (`+analysisRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Kind, run.Symbol, run.Shape, predictions, run.Summary, run.DataSource, run.CreatedAt)

	if err != nil {
		r.metrics.RecordDBError("insert", analysisRunsTable)
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	return nil
}

// GetAnalysisRun returns a single analysis run by ID, or nil when it does not exist
func (r *Repository) GetAnalysisRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	timer := r.metrics.NewTimer()
	defer timer.ObserveDB("select", analysisRunsTable)

	row := r.db.QueryRow(ctx, `SELECT `+analysisRunColumns+` FROM analysis_runs WHERE id = $1`, id)
	run, err := scanAnalysisRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.metrics.RecordDBError("select", analysisRunsTable)
		return nil, fmt.Errorf("failed to query analysis run: %w", err)
	}

	return run, nil
}

// GetAnalysisRuns returns the most recent runs, optionally filtered by kind
func (r *Repository) GetAnalysisRuns(ctx context.Context, kind models.AnalysisKind, limit int) ([]models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxAnalysisRuns {
		limit = MaxAnalysisRuns
	}

	timer := r.metrics.NewTimer()
	defer timer.ObserveDB("select", analysisRunsTable)

	var rows pgx.Rows
	var err error

	if kind == "" {
		rows, err = r.db.Query(ctx, `
			SELECT `+analysisRunColumns+`
			FROM analysis_runs
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+analysisRunColumns+`
			FROM analysis_runs
			WHERE kind = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, kind, limit)
	}

	if err != nil {
		r.metrics.RecordDBError("select", analysisRunsTable)
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []models.AnalysisRun{}
	for rows.Next() {
		run, err := scanAnalysisRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis runs: %w", err)
	}

	return runs, nil
}

func scanAnalysisRun(row pgx.Row) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	var predictions []byte

	err := row.Scan(&run.ID, &run.Kind, &run.Symbol, &run.Shape, &predictions, &run.Summary, &run.DataSource, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if predictions != nil {
		if err := json.Unmarshal(predictions, &run.Predictions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal predictions: %w", err)
		}
	}

	return &run, nil
}
