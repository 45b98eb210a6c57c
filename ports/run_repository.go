package ports

import (
	"context"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/run"
)

// RunRepository persists analysis runs and their per-response reports.
type RunRepository interface {
	SaveRun(ctx context.Context, record *run.Record) error
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)
	LatestRun(ctx context.Context) (*run.Record, error)
	ListRuns(ctx context.Context, limit int) ([]run.Manifest, error)
	GetReport(ctx context.Context, id core.RunID, response string) (*model.ComparisonReport, error)
}

// RunReader is the read-only side used by the HTTP view.
type RunReader interface {
	LatestRun(ctx context.Context) (*run.Record, error)
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)
}
