package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"govac/domain/core"
	"govac/internal"
	"govac/internal/api"
	"govac/internal/errors"
	"govac/internal/report"
	"govac/ports"
)

// App is the read-only web view of persisted analysis runs
type App struct {
	router *chi.Mux
	reader ports.RunReader
	logger *internal.Logger
}

// Config holds UI application configuration
type Config struct {
	Port string
}

// NewApp creates a new UI application
func NewApp(reader ports.RunReader, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	app := &App{
		router: chi.NewRouter(),
		reader: reader,
		logger: logger.With("UI"),
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	// Rendered reports
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRun)
	a.router.Get("/reports/{response}", a.handleReport)

	// JSON API
	a.router.Mount("/api", api.NewRouter(api.NewRunsHandler(a.reader, a.logger)))
}

// Handler exposes the router, mainly for tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (a *App) Start(ctx context.Context, config Config) error {
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving reports on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	rec, err := a.reader.LatestRun(r.Context())
	if err != nil {
		a.renderError(w, r, errors.Wrap(err, "loading latest run"))
		return
	}
	a.renderMarkdown(w, "Latest run", report.Document(report.FromRecord(rec)))
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := core.ParseRunID(raw)
	if err != nil {
		a.renderError(w, r, errors.InvalidInput(fmt.Sprintf("invalid run id %q", raw)))
		return
	}
	rec, err := a.reader.GetRun(r.Context(), id)
	if err != nil {
		a.renderError(w, r, errors.Wrapf(err, "loading run %s", id))
		return
	}
	a.renderMarkdown(w, "Run "+id.String(), report.Document(report.FromRecord(rec)))
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	response := chi.URLParam(r, "response")
	rec, err := a.reader.LatestRun(r.Context())
	if err != nil {
		a.renderError(w, r, errors.Wrap(err, "loading latest run"))
		return
	}
	rep, ok := rec.Report(response)
	if !ok {
		a.renderError(w, r, errors.NotFound("report "+response))
		return
	}
	a.renderMarkdown(w, response, report.Comparison(rep))
}

// renderMarkdown converts a Markdown document to a complete HTML page
func (a *App) renderMarkdown(w http.ResponseWriter, title, md string) {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: title,
	})
	page := markdown.ToHTML([]byte(md), p, renderer)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		a.logger.Warn("writing %s page: %v", title, err)
	}
}

func (a *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusFor(errors.GetCode(err))
	if status >= http.StatusInternalServerError {
		a.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, err.Error(), status)
}
