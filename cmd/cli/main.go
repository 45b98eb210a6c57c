package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"govac/app"
	"govac/domain/model"
	"govac/domain/reading"
	"govac/internal"
	"govac/internal/config"
	"govac/internal/container"
	"govac/internal/descriptives"
	"govac/internal/report"
	"govac/ui"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is fine; the environment is used as is.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "govac",
		Short:         "Mixed-model analysis of verb-argument construction reading times",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newModelsCmd(),
		newDescribeCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataFlags are shared by the commands that read the dataset.
type dataFlags struct {
	file  string
	sheet string
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Dataset path, .csv or .xlsx (overrides DATA_FILE)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Workbook sheet (overrides DATA_SHEET)")
}

// setup loads the configuration, applies flag overrides and builds the container.
func setup(flags *dataFlags) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags != nil {
		if flags.file != "" {
			cfg.Data.File = flags.file
		}
		if flags.sheet != "" {
			cfg.Data.Sheet = flags.sheet
		}
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.JSON)
	return container.New(cfg, logger)
}

func newAnalyzeCmd() *cobra.Command {
	var data dataFlags
	var format string
	var output string
	var save bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fit the model sequence on all three response variables",
		Long: `Load the dataset, fit the eight-model escalation for the whole-sentence,
critical-region and construction-region responses, and print the comparison
reports.

Example: govac analyze -f data.xlsx --format markdown --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "markdown" && format != "json" {
				return fmt.Errorf("unknown format %q (markdown or json)", format)
			}
			c, err := setup(&data)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())
			return runAnalyze(cmd.Context(), c, format, output, save)
		},
	}

	data.register(cmd)
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run to DATABASE_URL")

	return cmd
}

func runAnalyze(ctx context.Context, c *container.Container, format, output string, save bool) error {
	table, err := c.LoadTable(ctx)
	if err != nil {
		return err
	}
	result, err := c.Analysis.Analyze(ctx, table, c.Config.Data.File)
	if err != nil {
		return err
	}

	if save {
		if err := c.InitDatabase(ctx); err != nil {
			return err
		}
		if c.RunRepo == nil {
			return fmt.Errorf("--save needs DATABASE_URL")
		}
		if err := c.RunRepo.SaveRun(ctx, result.Record()); err != nil {
			return fmt.Errorf("saving run %s: %w", result.Manifest.RunID, err)
		}
		c.Logger.Info("saved run %s", result.Manifest.RunID)
	}

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := writeResult(w, result, format); err != nil {
		return err
	}

	if failed := result.Failures(); len(failed) > 0 {
		return fmt.Errorf("%d of %d pipelines failed", len(failed), len(result.Pipelines))
	}
	return nil
}

func writeResult(w io.Writer, result *app.AnalysisResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	rec := result.Record()
	run := report.FromRecord(rec)
	run.Fingerprint = result.Manifest.Fingerprint.DatasetHash.Short()
	run.Summary = result.Descriptives
	run.Failures = result.Failures()
	_, err := io.WriteString(w, report.Document(run))
	return err
}

func newModelsCmd() *cobra.Command {
	var response string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the eight models of the escalation",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch response {
			case reading.ResponseWhole, reading.ResponseCritical, reading.ResponseConstruction:
			default:
				return fmt.Errorf("unknown response %q", response)
			}
			out := cmd.OutOrStdout()
			for _, spec := range model.BuildSequence(response) {
				fmt.Fprintf(out, "%d  df=%-3d %s\n", spec.ID, spec.DF(), spec.Formula())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&response, "response", reading.ResponseCritical,
		fmt.Sprintf("Response variable: %s, %s or %s", reading.ResponseWhole, reading.ResponseCritical, reading.ResponseConstruction))

	return cmd
}

func newDescribeCmd() *cobra.Command {
	var data dataFlags
	var region int

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print reading-time descriptives per strength and construction",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(&data)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if region == 0 {
				region = c.Config.Analysis.DescriptiveRegion
			}
			table, err := c.LoadTable(cmd.Context())
			if err != nil {
				return err
			}
			coded, err := app.Prepare(table)
			if err != nil {
				return err
			}
			summary, err := descriptives.Describe(coded, region)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), report.Descriptives(summary))
			return err
		},
	}

	data.register(cmd)
	cmd.Flags().IntVar(&region, "region", 0, "Region to describe (default DESCRIPTIVE_REGION)")

	return cmd
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve saved runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(nil)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if err := c.InitDatabase(cmd.Context()); err != nil {
				return err
			}
			if c.RunRepo == nil {
				return fmt.Errorf("serve needs DATABASE_URL")
			}
			if port == "" {
				port = c.Config.Server.Port
			}
			return ui.NewApp(c.RunRepo, c.Logger).Start(cmd.Context(), ui.Config{Port: port})
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT)")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the run tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(nil)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if c.Config.Database.URL == "" {
				return fmt.Errorf("migrate needs DATABASE_URL")
			}
			return c.InitDatabase(cmd.Context())
		},
	}
}
