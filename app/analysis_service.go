package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/reading"
	"govac/domain/run"
	"govac/internal"
	"govac/internal/comparison"
	"govac/internal/descriptives"
	"govac/internal/transform"
	"govac/ports"
)

// AnalysisConfig defines the regions and statistical settings of a run
type AnalysisConfig struct {
	CriticalRegion      int
	ConstructionRegions []int
	DescriptiveRegion   int
	ExpectedRegions     int
	Workers             int
	Report              comparison.Options
	// MaxEvaluations and SingularTolerance are the fitter's settings,
	// recorded in the manifest.
	MaxEvaluations    int
	SingularTolerance float64
}

// DefaultAnalysisConfig returns the settings of the published analysis
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		CriticalRegion:      3,
		ConstructionRegions: []int{2, 3, 4, 5},
		DescriptiveRegion:   3,
		ExpectedRegions:     reading.MaxRegion,
		Workers:             3,
		Report:              comparison.DefaultOptions(),
		MaxEvaluations:      20000,
		SingularTolerance:   1e-4,
	}
}

// PipelineResult is the outcome of one response-variable pipeline. Exactly
// one of Report and Err is set; Error is the message of Err.
type PipelineResult struct {
	Response string                  `json:"response"`
	Report   *model.ComparisonReport `json:"report,omitempty"`
	Err      error                   `json:"-"`
	Error    string                  `json:"error,omitempty"`
	Duration time.Duration           `json:"duration"`
}

// AnalysisResult contains the complete output of an analysis run
type AnalysisResult struct {
	Manifest     *run.Manifest         `json:"manifest"`
	Pipelines    []PipelineResult      `json:"pipelines"`
	Descriptives *descriptives.Summary `json:"descriptives,omitempty"`
	// ShortTrials counts trials with fewer regions than expected; they are
	// summed as they are in the whole-sentence response.
	ShortTrials int `json:"short_trials"`
}

// Report returns the finished report of a response variable.
func (r *AnalysisResult) Report(response string) (*model.ComparisonReport, bool) {
	for _, p := range r.Pipelines {
		if p.Response == response && p.Report != nil {
			return p.Report, true
		}
	}
	return nil, false
}

// Failures maps each failed response variable to its error.
func (r *AnalysisResult) Failures() map[string]error {
	out := make(map[string]error)
	for _, p := range r.Pipelines {
		if p.Err != nil {
			out[p.Response] = p.Err
		}
	}
	return out
}

// Record converts the result to its persisted form.
func (r *AnalysisResult) Record() *run.Record {
	rec := &run.Record{Manifest: *r.Manifest}
	for _, p := range r.Pipelines {
		if p.Report != nil {
			rec.Reports = append(rec.Reports, p.Report)
		}
	}
	for response, err := range r.Failures() {
		if rec.Failures == nil {
			rec.Failures = make(map[string]string)
		}
		rec.Failures[response] = err.Error()
	}
	return rec
}

// pipeline derives one response table from the shared transformed table.
type pipeline struct {
	response string
	derive   func(*reading.TransformedTable) (*reading.ResponseTable, error)
}

// AnalysisService runs the three response-variable pipelines
type AnalysisService struct {
	fitter   ports.FitterPort
	config   AnalysisConfig
	reporter *comparison.Reporter
	logger   *internal.Logger
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(fitter ports.FitterPort, config AnalysisConfig, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &AnalysisService{
		fitter:   fitter,
		config:   config,
		reporter: comparison.NewReporter(config.Report, logger),
		logger:   logger.With("AnalysisService"),
	}
}

// Settings returns the run settings recorded in the manifest
func (s *AnalysisService) Settings() run.Settings {
	return run.Settings{
		CriticalRegion:      s.config.CriticalRegion,
		ConstructionRegions: append([]int(nil), s.config.ConstructionRegions...),
		ExpectedRegions:     s.config.ExpectedRegions,
		Alpha:               s.config.Report.Alpha,
		CILevel:             s.config.Report.Level,
		CIModelID:           s.config.Report.ModelID,
		MaxEvaluations:      s.config.MaxEvaluations,
		SingularTolerance:   s.config.SingularTolerance,
		Profile:             s.config.Report.Profile,
	}
}

func (s *AnalysisService) pipelines() []pipeline {
	return []pipeline{
		{response: reading.ResponseWhole, derive: func(t *reading.TransformedTable) (*reading.ResponseTable, error) {
			return transform.AggregateWhole(t), nil
		}},
		{response: reading.ResponseCritical, derive: func(t *reading.TransformedTable) (*reading.ResponseTable, error) {
			return transform.SelectRegion(t, s.config.CriticalRegion)
		}},
		{response: reading.ResponseConstruction, derive: func(t *reading.TransformedTable) (*reading.ResponseTable, error) {
			return transform.AggregateRegions(t, s.config.ConstructionRegions)
		}},
	}
}

// Prepare runs the shared transform stage: log transform, strength contrast
// coding and the balance check. Any failure here stops the run before a
// model is fitted.
func Prepare(table *reading.Table) (*reading.TransformedTable, error) {
	logged, err := transform.LogTransform(table)
	if err != nil {
		return nil, err
	}
	coded, err := transform.CodeContrast(logged, transform.FieldStrength, transform.StrengthContrast)
	if err != nil {
		return nil, err
	}
	if err := transform.ValidateContrastBalance(coded); err != nil {
		return nil, err
	}
	return coded, nil
}

// Analyze runs the full analysis of a validated table. The returned error is
// set only when the run as a whole failed; a failed pipeline is recorded on
// its PipelineResult and does not affect its siblings.
func (s *AnalysisService) Analyze(ctx context.Context, table *reading.Table, dataFile string) (*AnalysisResult, error) {
	startTime := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := run.NewManifest(core.NewRunID(), dataFile, table.Len(), table.Fingerprint(), s.Settings())
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	log := s.logger
	log.Info("run %s: %d observations, dataset %s", manifest.RunID, table.Len(), manifest.Fingerprint.DatasetHash.Short())

	coded, err := Prepare(table)
	if err != nil {
		log.Error("run %s: transform failed, no models fitted: %v", manifest.RunID, err)
		return nil, err
	}

	result := &AnalysisResult{Manifest: manifest}
	result.ShortTrials = s.countShortTrials(coded)
	if summary, err := descriptives.Describe(coded, s.config.DescriptiveRegion); err != nil {
		log.Warn("run %s: no descriptives for region %d: %v", manifest.RunID, s.config.DescriptiveRegion, err)
	} else {
		result.Descriptives = summary
	}

	pipelines := s.pipelines()
	results := make([]PipelineResult, len(pipelines))
	g := new(errgroup.Group)
	g.SetLimit(s.config.Workers)
	for i, p := range pipelines {
		g.Go(func() error {
			results[i] = s.runPipeline(ctx, p, coded)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Pipelines = results

	failed := len(result.Failures())
	log.Info("run %s finished in %s: %d/%d pipelines succeeded",
		manifest.RunID, time.Since(startTime).Round(time.Millisecond), len(results)-failed, len(results))
	return result, nil
}

func (s *AnalysisService) countShortTrials(coded *reading.TransformedTable) int {
	whole := transform.AggregateWhole(coded)
	short := 0
	for _, r := range whole.Rows() {
		if r.Regions < s.config.ExpectedRegions {
			short++
		}
	}
	if short > 0 {
		s.logger.Warn("%d of %d trials have fewer than %d regions; whole-sentence sums include them as they are",
			short, whole.Len(), s.config.ExpectedRegions)
	}
	return short
}

func (s *AnalysisService) runPipeline(ctx context.Context, p pipeline, coded *reading.TransformedTable) PipelineResult {
	start := time.Now()
	res := PipelineResult{Response: p.response}
	report, err := s.RunResponse(ctx, p.response, func() (*reading.ResponseTable, error) { return p.derive(coded) })
	res.Duration = time.Since(start)
	if err != nil {
		s.logger.Error("pipeline %s failed: %v", p.response, err)
		res.Err = fmt.Errorf("pipeline %s: %w", p.response, err)
		res.Error = res.Err.Error()
		return res
	}
	res.Report = report
	return res
}

// RunResponse derives one response table, fits the model sequence on it and
// builds the comparison report.
func (s *AnalysisService) RunResponse(ctx context.Context, response string, derive func() (*reading.ResponseTable, error)) (*model.ComparisonReport, error) {
	data, err := derive()
	if err != nil {
		return nil, err
	}
	fitted, err := s.FitSequence(ctx, data)
	if err != nil {
		return nil, err
	}
	report, err := s.reporter.Build(ctx, response, fitted, s.fitter.Profiler(data))
	if err != nil {
		return nil, err
	}
	if flagged := report.FlaggedModels(); len(flagged) > 0 {
		s.logger.Warn("%s: models %v carry flags", response, flagged)
	}
	return report, nil
}

// FitSequence fits the eight models of the escalation in order. A model with
// numerical trouble is kept with its flags and the sequence continues.
func (s *AnalysisService) FitSequence(ctx context.Context, data *reading.ResponseTable) ([]*model.Fitted, error) {
	specs := model.BuildSequence(data.Response())
	fitted := make([]*model.Fitted, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := s.fitter.Fit(ctx, spec, data)
		if err != nil {
			return nil, fmt.Errorf("fitting model %d: %w", spec.ID, err)
		}
		if !f.Reliable() {
			s.logger.Warn("%s model %d: %v %v", data.Response(), spec.ID, f.Flags, f.Messages)
		}
		fitted = append(fitted, f)
	}
	return fitted, nil
}
