package migration

import (
	"context"
	"errors"
	"testing"

	apperrors "govac/internal/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CreatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analysis_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS comparison_reports").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_analysis_runs_created_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_analysis_runs_fingerprint").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewRunner().Run(context.Background(), sqlx.NewDb(db, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analysis_runs").WillReturnError(errors.New("permission denied"))

	err = NewRunner().Run(context.Background(), sqlx.NewDb(db, "postgres"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "analysis_runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
