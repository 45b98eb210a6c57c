package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"testing"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/run"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*RunRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &RunRepositoryImpl{db: sqlx.NewDb(db, "postgres")}, mock
}

func sampleRecord() *run.Record {
	settings := run.Settings{CriticalRegion: 3, ConstructionRegions: []int{2, 3, 4, 5}, ExpectedRegions: 7, Alpha: 0.05, CILevel: 0.95}
	m := run.NewManifest(core.NewRunID(), "data.xlsx", 140, core.NewHash([]byte("table")), settings)
	return &run.Record{
		Manifest: *m,
		Reports: []*model.ComparisonReport{
			{
				Response:      "logRT_whole",
				NObs:          20,
				SelectedModel: 5,
				Models:        []model.ModelSummary{{SpecID: 6, LogLik: -12, Flags: []model.Flag{model.FlagSingular}}},
				Comparisons:   []model.Comparison{{From: 5, To: 6, Chisq: 0, RawDiff: -0.001, DFDiff: 2, PValue: 1}},
			},
			{Response: "logRT", NObs: 20, SelectedModel: 1},
		},
		Failures: map[string]string{"VAC_RT": "pipeline VAC_RT: empty result"},
	}
}

func TestSaveRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord()
	id := rec.Manifest.RunID.String()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(id, "data.xlsx", 140, rec.Manifest.Fingerprint.Fingerprint.String(), run.CodeVersion,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO comparison_reports").
		WithArgs(id, "logRT_whole", 0, 5, "{6}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO comparison_reports").
		WithArgs(id, "logRT", 1, 1, "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRun(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_DuplicateRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analysis_runs").WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := repo.SaveRun(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrRunExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord()
	id := rec.Manifest.RunID

	manifest, err := json.Marshal(rec.Manifest)
	require.NoError(t, err)
	failures, err := json.Marshal(rec.Failures)
	require.NoError(t, err)
	first, err := json.Marshal(rec.Reports[0])
	require.NoError(t, err)
	second, err := json.Marshal(rec.Reports[1])
	require.NoError(t, err)

	mock.ExpectQuery("SELECT manifest, failures FROM analysis_runs").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"manifest", "failures"}).AddRow(manifest, failures))
	mock.ExpectQuery("SELECT payload FROM comparison_reports").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(first).AddRow(second))

	got, err := repo.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.Manifest.RunID)
	assert.Equal(t, rec.Manifest.Fingerprint, got.Manifest.Fingerprint)
	assert.Equal(t, rec.Failures, got.Failures)
	require.Len(t, got.Reports, 2)
	whole, ok := got.Report("logRT_whole")
	require.True(t, ok)
	assert.Equal(t, []int{6}, whole.FlaggedModels())
	assert.Equal(t, -0.001, whole.Comparisons[0].RawDiff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM analysis_runs").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRun(context.Background(), core.NewRunID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLatestRun_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"manifest", "failures"}))

	_, err := repo.LatestRun(context.Background())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	repo, mock := newMockRepo(t)
	a, b := sampleRecord().Manifest, sampleRecord().Manifest
	pa, _ := json.Marshal(a)
	pb, _ := json.Marshal(b)

	mock.ExpectQuery("SELECT manifest FROM analysis_runs ORDER BY created_at DESC LIMIT").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"manifest"}).AddRow(pb).AddRow(pa))

	manifests, err := repo.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, b.RunID, manifests[0].RunID)
	assert.Equal(t, a.RunID, manifests[1].RunID)
}

func TestGetReport_PreservesNaN(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := core.NewRunID()
	payload, err := json.Marshal(&model.ComparisonReport{
		Response:    "logRT",
		Comparisons: []model.Comparison{{From: 3, To: 4, Chisq: math.NaN(), RawDiff: math.NaN(), DFDiff: 3, PValue: math.NaN()}},
	})
	require.NoError(t, err)

	mock.ExpectQuery("FROM comparison_reports").
		WithArgs(id.String(), "logRT").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	report, err := repo.GetReport(context.Background(), id, "logRT")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(report.Comparisons[0].PValue))
	assert.Equal(t, 3, report.Comparisons[0].DFDiff)
}
