package repository

import (
	"context"

	"market-dashboard/models"

	"github.com/google/uuid"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Analysis runs
	CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error
	GetAnalysisRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error)
	GetAnalysisRuns(ctx context.Context, kind models.AnalysisKind, limit int) ([]models.AnalysisRun, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
