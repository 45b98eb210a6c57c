package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/reading"
	"govac/domain/run"
	"govac/internal"
)

type stubReader struct {
	latest *run.Record
}

func (s *stubReader) LatestRun(context.Context) (*run.Record, error) {
	if s.latest == nil {
		return nil, fmt.Errorf("%w: no runs saved", core.ErrNotFound)
	}
	return s.latest, nil
}

func (s *stubReader) GetRun(_ context.Context, id core.RunID) (*run.Record, error) {
	if s.latest != nil && s.latest.Manifest.RunID == id {
		return s.latest, nil
	}
	return nil, fmt.Errorf("%w: run %s", core.ErrNotFound, id)
}

func sampleRecord() *run.Record {
	m := run.NewManifest(core.NewRunID(), "data.csv", 28, core.NewHash([]byte("rows")), run.Settings{})
	return &run.Record{
		Manifest: *m,
		Reports: []*model.ComparisonReport{{
			Response:      reading.ResponseWhole,
			NObs:          4,
			SelectedModel: 1,
			Level:         0.95,
			Models:        []model.ModelSummary{{SpecID: 1, Formula: "logRT_whole ~ 1 + (1 | subject)", DF: 3, LogLik: -10}},
		}},
	}
}

func serve(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, NewApp(&stubReader{}, internal.NewNopLogger()), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndex_RendersLatestRun(t *testing.T) {
	rec := sampleRecord()
	w := serve(t, NewApp(&stubReader{latest: rec}, internal.NewNopLogger()), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, rec.Manifest.RunID.String())
}

func TestIndex_NoRuns(t *testing.T) {
	w := serve(t, NewApp(&stubReader{}, internal.NewNopLogger()), "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunPage(t *testing.T) {
	rec := sampleRecord()
	app := NewApp(&stubReader{latest: rec}, internal.NewNopLogger())

	assert.Equal(t, http.StatusOK, serve(t, app, "/runs/"+rec.Manifest.RunID.String()).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, app, "/runs/latest").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, app, "/runs/"+core.NewRunID().String()).Code)
}

func TestReportPage(t *testing.T) {
	app := NewApp(&stubReader{latest: sampleRecord()}, internal.NewNopLogger())

	w := serve(t, app, "/reports/"+reading.ResponseWhole)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), reading.ResponseWhole)

	assert.Equal(t, http.StatusNotFound, serve(t, app, "/reports/"+reading.ResponseCritical).Code)
}

func TestAPIMounted(t *testing.T) {
	rec := sampleRecord()
	w := serve(t, NewApp(&stubReader{latest: rec}, internal.NewNopLogger()), "/api/runs/latest")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rec.Manifest.RunID.String())
}
