package storage

import (
	"context"

	"gpforge/internal/model"
)

// Store persists run records and the per-run series produced by evolution.
type Store interface {
	Init(ctx context.Context) error
	// Reset drops every stored record.
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveProblemSummary(ctx context.Context, summary model.ProblemSummary) error
	GetProblemSummary(ctx context.Context, name string) (model.ProblemSummary, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopPrograms(ctx context.Context, runID string, top []model.TopProgramRecord) error
	GetTopPrograms(ctx context.Context, runID string) ([]model.TopProgramRecord, bool, error)
}
