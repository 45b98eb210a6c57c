package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"govac/domain/core"
	"govac/domain/run"
	"govac/internal"
	"govac/internal/errors"
	"govac/ports"
)

// RunsHandler serves persisted analysis runs as JSON
type RunsHandler struct {
	reader ports.RunReader
	logger *internal.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(reader ports.RunReader, logger *internal.Logger) *RunsHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RunsHandler{reader: reader, logger: logger.With("API")}
}

// NewRouter builds the gin engine for the /api prefix.
func NewRouter(h *RunsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/api")
	g.GET("/runs/latest", h.GetLatestRun)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/reports/:response", h.GetReport)
	return r
}

// GetLatestRun returns the most recent run with all its reports
func (h *RunsHandler) GetLatestRun(c *gin.Context) {
	rec, err := h.reader.LatestRun(c.Request.Context())
	if err != nil {
		h.fail(c, errors.Wrap(err, "loading latest run"))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetRun returns one run by id
func (h *RunsHandler) GetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		h.fail(c, errors.InvalidInput(fmt.Sprintf("invalid run id %q", c.Param("id"))))
		return
	}
	rec, err := h.reader.GetRun(c.Request.Context(), id)
	if err != nil {
		h.fail(c, errors.Wrapf(err, "loading run %s", id))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetReport returns one response-variable report, from the run named by the
// run query parameter or from the latest run.
func (h *RunsHandler) GetReport(c *gin.Context) {
	response := c.Param("response")
	rec, err := h.resolveRun(c.Request.Context(), c.Query("run"))
	if err != nil {
		h.fail(c, err)
		return
	}
	report, ok := rec.Report(response)
	if !ok {
		if msg, failed := rec.Failures[response]; failed {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg, "code": errors.CodeModelError})
			return
		}
		h.fail(c, errors.NotFound("report "+response))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *RunsHandler) resolveRun(ctx context.Context, raw string) (*run.Record, error) {
	if raw == "" {
		rec, err := h.reader.LatestRun(ctx)
		return rec, errors.Wrap(err, "loading latest run")
	}
	id, err := core.ParseRunID(raw)
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid run id %q", raw))
	}
	rec, err := h.reader.GetRun(ctx, id)
	return rec, errors.Wrapf(err, "loading run %s", id)
}

func (h *RunsHandler) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// StatusFor maps an application error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeTransformError, errors.CodeModelError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
