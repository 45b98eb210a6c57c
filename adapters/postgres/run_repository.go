package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/run"
	"govac/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrRunExists is returned when a run id is saved twice.
var ErrRunExists = errors.New("run already saved")

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// RunRepositoryImpl implements RunRepository for PostgreSQL. Manifests and
// reports are stored as JSONB so NaN statistics survive the round trip.
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	Manifest []byte `db:"manifest"`
	Failures []byte `db:"failures"`
}

type reportRow struct {
	Payload []byte `db:"payload"`
}

// SaveRun writes the manifest and every report in one transaction.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, record *run.Record) error {
	manifest, err := json.Marshal(record.Manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	var failures []byte
	if len(record.Failures) > 0 {
		if failures, err = json.Marshal(record.Failures); err != nil {
			return fmt.Errorf("encoding failures: %w", err)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := record.Manifest
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, data_file, observations, fingerprint, code_version, manifest, failures, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.RunID.String(), m.DataFile, m.Observations, m.Fingerprint.Fingerprint.String(), m.Fingerprint.CodeVersion,
		manifest, failures, m.CreatedAt.Time())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrRunExists, m.RunID)
		}
		return err
	}

	for i, report := range record.Reports {
		payload, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encoding %s report: %w", report.Response, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO comparison_reports (run_id, response, position, selected_model, flagged_models, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.RunID.String(), report.Response, i, report.SelectedModel, pq.Array(flaggedModels(report)), payload)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run and its reports by id
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT manifest, failures
		FROM analysis_runs
		WHERE id = $1
	`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", core.ErrNotFound, id)
		}
		return nil, err
	}
	return r.loadRecord(ctx, row)
}

// LatestRun retrieves the most recently created run
func (r *RunRepositoryImpl) LatestRun(ctx context.Context) (*run.Record, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT manifest, failures
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no runs saved", core.ErrNotFound)
		}
		return nil, err
	}
	return r.loadRecord(ctx, row)
}

// ListRuns returns run manifests, newest first, optionally limited
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	query := `
		SELECT manifest
		FROM analysis_runs
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var payloads [][]byte
	if err := r.db.SelectContext(ctx, &payloads, query, args...); err != nil {
		return nil, err
	}
	manifests := make([]run.Manifest, 0, len(payloads))
	for _, p := range payloads {
		var m run.Manifest
		if err := json.Unmarshal(p, &m); err != nil {
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// GetReport retrieves one response-variable report of a run
func (r *RunRepositoryImpl) GetReport(ctx context.Context, id core.RunID, response string) (*model.ComparisonReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `
		SELECT payload
		FROM comparison_reports
		WHERE run_id = $1 AND response = $2
	`, id.String(), response)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s report of run %s", core.ErrNotFound, response, id)
		}
		return nil, err
	}
	var report model.ComparisonReport
	if err := json.Unmarshal(row.Payload, &report); err != nil {
		return nil, fmt.Errorf("decoding %s report: %w", response, err)
	}
	return &report, nil
}

func (r *RunRepositoryImpl) loadRecord(ctx context.Context, row runRow) (*run.Record, error) {
	record := &run.Record{}
	if err := json.Unmarshal(row.Manifest, &record.Manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if len(row.Failures) > 0 {
		if err := json.Unmarshal(row.Failures, &record.Failures); err != nil {
			return nil, fmt.Errorf("decoding failures: %w", err)
		}
	}

	var reports []reportRow
	err := r.db.SelectContext(ctx, &reports, `
		SELECT payload
		FROM comparison_reports
		WHERE run_id = $1
		ORDER BY position
	`, record.Manifest.RunID.String())
	if err != nil {
		return nil, err
	}
	for _, rr := range reports {
		var report model.ComparisonReport
		if err := json.Unmarshal(rr.Payload, &report); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		record.Reports = append(record.Reports, &report)
	}
	return record, nil
}

func flaggedModels(report *model.ComparisonReport) []int64 {
	ids := report.FlaggedModels()
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
