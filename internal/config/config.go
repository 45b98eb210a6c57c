package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"govac/domain/reading"
	"govac/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Analysis AnalysisConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DataConfig holds the input dataset settings
type DataConfig struct {
	File            string
	Sheet           string
	ExpectedRegions int
}

// AnalysisConfig holds the per-response pipeline settings
type AnalysisConfig struct {
	CriticalRegion      int
	ConstructionRegions []int
	DescriptiveRegion   int
	Alpha               float64
	CILevel             float64
	// CIModelID pins the model used for confidence intervals; 0 selects it
	// from the likelihood-ratio tests.
	CIModelID         int
	MaxEvaluations    int
	SingularTolerance float64
	Workers           int
	ProfileEnabled    bool
}

// DatabaseConfig holds database connection settings. An empty URL disables
// persistence.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	Enabled bool
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from environment variables and validates it.
// A set variable that does not parse is a CONFIG_INVALID error, never a
// silent fallback to the default.
func Load() (*Config, error) {
	env := &envReader{}
	analysis, err := loadAnalysisConfig(env)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}

	config := &Config{
		Data:     *loadDataConfig(env),
		Analysis: *analysis,
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			Enabled: env.getEnvBoolOrDefault("SERVE_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			JSON:  env.getEnvBoolOrDefault("LOG_JSON", false),
		},
	}
	if env.err != nil {
		return nil, env.err
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Default returns the analysis defaults without reading the environment.
func Default() *Config {
	return &Config{
		Data: DataConfig{Sheet: "Sheet1", ExpectedRegions: reading.MaxRegion},
		Analysis: AnalysisConfig{
			CriticalRegion:      3,
			ConstructionRegions: []int{2, 3, 4, 5},
			DescriptiveRegion:   3,
			Alpha:               0.05,
			CILevel:             0.95,
			MaxEvaluations:      20000,
			SingularTolerance:   1e-4,
			Workers:             3,
			ProfileEnabled:      true,
		},
		Server:  ServerConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

func loadDataConfig(env *envReader) *DataConfig {
	return &DataConfig{
		File:            getEnvOrDefault("DATA_FILE", ""),
		Sheet:           getEnvOrDefault("DATA_SHEET", "Sheet1"),
		ExpectedRegions: env.getEnvIntOrDefault("EXPECTED_REGIONS", reading.MaxRegion),
	}
}

func loadAnalysisConfig(env *envReader) (*AnalysisConfig, error) {
	regions, err := parseRegions(getEnvOrDefault("CONSTRUCTION_REGIONS", "2,3,4,5"))
	if err != nil {
		return nil, err
	}
	return &AnalysisConfig{
		CriticalRegion:      env.getEnvIntOrDefault("CRITICAL_REGION", 3),
		ConstructionRegions: regions,
		DescriptiveRegion:   env.getEnvIntOrDefault("DESCRIPTIVE_REGION", 3),
		Alpha:               env.getEnvFloatOrDefault("ALPHA", 0.05),
		CILevel:             env.getEnvFloatOrDefault("CI_LEVEL", 0.95),
		CIModelID:           env.getEnvIntOrDefault("CI_MODEL_ID", 0),
		MaxEvaluations:      env.getEnvIntOrDefault("MAX_EVALUATIONS", 20000),
		SingularTolerance:   env.getEnvFloatOrDefault("SINGULAR_TOLERANCE", 1e-4),
		Workers:             env.getEnvIntOrDefault("PIPELINE_WORKERS", 3),
		ProfileEnabled:      env.getEnvBoolOrDefault("PROFILE_ENABLED", true),
	}, nil
}

// parseRegions reads a comma separated list of region numbers.
func parseRegions(value string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("CONSTRUCTION_REGIONS: %q is not a region number", part))
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.ConfigInvalid("CONSTRUCTION_REGIONS must name at least one region")
	}
	return out, nil
}

func validRegion(r int) bool {
	return r >= reading.MinRegion && r <= reading.MaxRegion
}

// Validate checks the values that do not depend on the environment.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(config *Config) error {
	a := config.Analysis
	if !validRegion(a.CriticalRegion) {
		return errors.ConfigInvalid(fmt.Sprintf("CRITICAL_REGION %d is outside %d..%d", a.CriticalRegion, reading.MinRegion, reading.MaxRegion))
	}
	if !validRegion(a.DescriptiveRegion) {
		return errors.ConfigInvalid(fmt.Sprintf("DESCRIPTIVE_REGION %d is outside %d..%d", a.DescriptiveRegion, reading.MinRegion, reading.MaxRegion))
	}
	for _, r := range a.ConstructionRegions {
		if !validRegion(r) {
			return errors.ConfigInvalid(fmt.Sprintf("CONSTRUCTION_REGIONS contains %d", r))
		}
	}
	if config.Data.ExpectedRegions < 1 || config.Data.ExpectedRegions > reading.MaxRegion {
		return errors.ConfigInvalid(fmt.Sprintf("EXPECTED_REGIONS %d is outside 1..%d", config.Data.ExpectedRegions, reading.MaxRegion))
	}
	if !(a.Alpha > 0 && a.Alpha < 1) {
		return errors.ConfigInvalid("ALPHA must be in (0, 1)")
	}
	if !(a.CILevel > 0 && a.CILevel < 1) {
		return errors.ConfigInvalid("CI_LEVEL must be in (0, 1)")
	}
	if a.CIModelID < 0 || a.CIModelID > 8 {
		return errors.ConfigInvalid(fmt.Sprintf("CI_MODEL_ID %d is not a model id", a.CIModelID))
	}
	if a.MaxEvaluations < 1 {
		return errors.ConfigInvalid("MAX_EVALUATIONS must be positive")
	}
	if !(a.SingularTolerance > 0) {
		return errors.ConfigInvalid("SINGULAR_TOLERANCE must be positive")
	}
	if a.Workers < 1 {
		return errors.ConfigInvalid("PIPELINE_WORKERS must be at least 1")
	}
	return nil
}

// RequireDataFile reports a missing DATA_FILE; commands that read the
// dataset call it, the server alone does not need one.
func (c *Config) RequireDataFile() error {
	if c.Data.File == "" {
		return errors.ConfigInvalid("DATA_FILE is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps the first parse failure.
type envReader struct {
	err error
}

func (r *envReader) invalid(key, value, kind string) {
	if r.err == nil {
		r.err = errors.ConfigInvalid(fmt.Sprintf("%s: %q is not %s", key, value, kind))
	}
}

func (r *envReader) getEnvIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.invalid(key, value, "an integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.invalid(key, value, "a number")
		return defaultValue
	}
	return floatValue
}

func (r *envReader) getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		r.invalid(key, value, "a boolean")
		return defaultValue
	}
	return boolValue
}
