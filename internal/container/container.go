package container

import (
	"context"
	"fmt"

	"govac/adapters/excel"
	"govac/adapters/postgres"
	"govac/adapters/stats/lmm"
	"govac/app"
	"govac/domain/reading"
	"govac/internal"
	"govac/internal/comparison"
	"govac/internal/config"
	"govac/internal/errors"
	"govac/internal/ingest"
	"govac/internal/migration"
	"govac/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Analysis components
	Engine   *lmm.Engine
	Loader   *ingest.Loader
	Analysis *app.AnalysisService

	// Repositories (data access layer); nil without a database
	RunRepo ports.RunRepository
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}
	c.initAnalysis()
	return c, nil
}

// EngineOptions maps the configuration onto the fitter's settings.
func EngineOptions(cfg *config.Config) lmm.Options {
	opts := lmm.DefaultOptions()
	opts.MaxEvaluations = cfg.Analysis.MaxEvaluations
	opts.SingularTolerance = cfg.Analysis.SingularTolerance
	return opts
}

// AnalysisConfig maps the configuration onto the service settings.
func AnalysisConfig(cfg *config.Config) app.AnalysisConfig {
	a := cfg.Analysis
	return app.AnalysisConfig{
		CriticalRegion:      a.CriticalRegion,
		ConstructionRegions: append([]int(nil), a.ConstructionRegions...),
		DescriptiveRegion:   a.DescriptiveRegion,
		ExpectedRegions:     cfg.Data.ExpectedRegions,
		Workers:             a.Workers,
		Report: comparison.Options{
			Alpha:   a.Alpha,
			Level:   a.CILevel,
			ModelID: a.CIModelID,
			Profile: a.ProfileEnabled,
		},
		MaxEvaluations:    a.MaxEvaluations,
		SingularTolerance: a.SingularTolerance,
	}
}

func (c *Container) initAnalysis() {
	c.Engine = lmm.NewEngine(EngineOptions(c.Config), c.Logger)
	c.Loader = ingest.NewLoader(c.Logger)
	c.Analysis = app.NewAnalysisService(c.Engine, AnalysisConfig(c.Config), c.Logger)
}

// DataSource returns the reader for the configured dataset
func (c *Container) DataSource() *excel.DataReader {
	return excel.NewDataReader(c.Config.Data.File, c.Logger).WithSheet(c.Config.Data.Sheet)
}

// LoadTable reads and validates the configured dataset
func (c *Container) LoadTable(ctx context.Context) (*reading.Table, error) {
	if err := c.Config.RequireDataFile(); err != nil {
		return nil, err
	}
	return c.Loader.Load(ctx, c.DataSource())
}

// InitDatabase connects to DATABASE_URL, runs migrations and creates the
// repositories. It is a no-op when no URL is configured.
func (c *Container) InitDatabase(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to connect to database"))
	}
	return c.InitWithDatabase(ctx, db)
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.InternalError("database connection cannot be nil")
	}
	c.DB = db

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}

	c.RunRepo = postgres.NewRunRepository(db)
	c.Logger.Info("database ready (schema %s)", migrator.Version())
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	_ = c.Logger.Sync()
	return nil
}
