package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"govac/internal"
	"govac/internal/config"
	"govac/internal/container"
	"govac/internal/report"
	"govac/ui"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level), appConfig.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// Initialize database when DATABASE_URL is set
	if err := appContainer.InitDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if appConfig.Data.File != "" {
		if err := analyze(ctx, appContainer); err != nil {
			logger.Error("analysis failed: %v", err)
			if !appConfig.Server.Enabled {
				appContainer.Shutdown(context.Background())
				os.Exit(1)
			}
		}
	} else if !appConfig.Server.Enabled {
		log.Fatalf("Nothing to do: set DATA_FILE to analyze or SERVE_ENABLED to serve saved runs")
	}

	if appConfig.Server.Enabled {
		if appContainer.RunRepo == nil {
			log.Fatalf("SERVE_ENABLED needs DATABASE_URL")
		}
		server := ui.NewApp(appContainer.RunRepo, logger)
		if err := server.Start(ctx, ui.Config{Port: appConfig.Server.Port}); err != nil {
			logger.Error("server stopped: %v", err)
		}
	}
}

// analyze runs the full analysis on DATA_FILE, prints the Markdown report and
// saves the run when a database is configured.
func analyze(ctx context.Context, c *container.Container) error {
	table, err := c.LoadTable(ctx)
	if err != nil {
		return err
	}
	result, err := c.Analysis.Analyze(ctx, table, c.Config.Data.File)
	if err != nil {
		return err
	}

	if c.RunRepo != nil {
		if err := c.RunRepo.SaveRun(ctx, result.Record()); err != nil {
			return fmt.Errorf("saving run %s: %w", result.Manifest.RunID, err)
		}
		c.Logger.Info("saved run %s", result.Manifest.RunID)
	}

	fmt.Print(report.Document(report.Run{
		ID:          result.Manifest.RunID.String(),
		Fingerprint: result.Manifest.Fingerprint.DatasetHash.Short(),
		Reports:     result.Record().Reports,
		Failures:    result.Failures(),
		Summary:     result.Descriptives,
	}))
	return nil
}
