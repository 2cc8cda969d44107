package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the settings of one selection run.
type Config struct {
	Selection      SelectionConfig `yaml:"selection"`
	Scenario       ScenarioConfig  `yaml:"scenario"`
	Database       DatabaseConfig  `yaml:"database"`
	Output         OutputConfig    `yaml:"output"`
	Logging        LoggingConfig   `yaml:"logging"`
	MetricsAddress string          `yaml:"metricsAddress"`
}

// SelectionConfig controls the target, simulation, and optimization stages.
type SelectionConfig struct {
	Count int `yaml:"count"`

	// Periods is an explicit grid in seconds. When empty the grid is generated
	// from PeriodRange.
	Periods     []float64         `yaml:"periods"`
	PeriodRange PeriodRangeConfig `yaml:"periodRange"`

	ConditioningPeriod float64 `yaml:"conditioningPeriod"`
	Epsilon            float64 `yaml:"epsilon"`
	Conditional        bool    `yaml:"conditional"`
	VarianceEnabled    bool    `yaml:"varianceEnabled"`

	Trials   int    `yaml:"trials"`
	Seed     uint64 `yaml:"seed"`
	Sampling string `yaml:"sampling"`

	ScalingEnabled bool    `yaml:"scalingEnabled"`
	MaxScaleFactor float64 `yaml:"maxScaleFactor"`

	Passes           int           `yaml:"passes"`
	Metric           string        `yaml:"metric"`
	PenaltyWeight    float64       `yaml:"penaltyWeight"`
	TolerancePercent float64       `yaml:"tolerancePercent"`
	Weights          WeightsConfig `yaml:"weights"`
	Parallel         bool          `yaml:"parallel"`
}

// PeriodRangeConfig generates a log-spaced period grid.
type PeriodRangeConfig struct {
	MinPeriod float64 `yaml:"minPeriod"`
	MaxPeriod float64 `yaml:"maxPeriod"`
	Count     int     `yaml:"count"`
}

// WeightsConfig weights the mean and dispersion terms of the match error.
type WeightsConfig struct {
	Mean  float64 `yaml:"mean"`
	Stdev float64 `yaml:"stdev"`
}

// ScenarioConfig describes the rupture the target spectrum is built for.
type ScenarioConfig struct {
	Magnitude    float64 `yaml:"magnitude"`
	DistanceKm   float64 `yaml:"distanceKm"`
	Vs30         float64 `yaml:"vs30"`
	BasinDepthKm float64 `yaml:"basinDepthKm"`
	Mechanism    string  `yaml:"mechanism"`
	Region       string  `yaml:"region"`
}

// DatabaseConfig locates the record catalog and its screening filters.
type DatabaseConfig struct {
	Driver  string        `yaml:"driver"`
	Path    string        `yaml:"path"`
	Filters FiltersConfig `yaml:"filters"`
}

// FiltersConfig mirrors the catalog screening predicate. Zero-valued maxima
// disable the corresponding bound.
type FiltersConfig struct {
	MinMagnitude          float64 `yaml:"minMagnitude"`
	MaxMagnitude          float64 `yaml:"maxMagnitude"`
	MinDistanceKm         float64 `yaml:"minDistanceKm"`
	MaxDistanceKm         float64 `yaml:"maxDistanceKm"`
	MinVs30               float64 `yaml:"minVs30"`
	MaxVs30               float64 `yaml:"maxVs30"`
	MaxUsablePeriodFactor float64 `yaml:"maxUsablePeriodFactor"`
}

// OutputConfig controls where and how the selection is written.
type OutputConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GMSELECT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Selection: SelectionConfig{
			Count:              30,
			PeriodRange:        PeriodRangeConfig{MinPeriod: 0.1, MaxPeriod: 10, Count: 30},
			ConditioningPeriod: 1,
			Epsilon:            1.5,
			Conditional:        true,
			VarianceEnabled:    true,
			Trials:             20,
			Sampling:           "latin",
			ScalingEnabled:     true,
			MaxScaleFactor:     4,
			Passes:             3,
			Metric:             "sse",
			PenaltyWeight:      0,
			TolerancePercent:   10,
			Weights:            WeightsConfig{Mean: 1, Stdev: 2},
		},
		Scenario: ScenarioConfig{
			Magnitude:  6.5,
			DistanceKm: 25,
			Vs30:       400,
			Mechanism:  "unspecified",
			Region:     "global",
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Output:   OutputConfig{Path: "selection.csv", Delimiter: ","},
		Logging:  LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GMSELECT_SELECTION_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.Count = n
		}
	}
	if v := os.Getenv("GMSELECT_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Selection.Seed = seed
		}
	}
	if v := os.Getenv("GMSELECT_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.Trials = n
		}
	}
	if v := os.Getenv("GMSELECT_PASSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.Passes = n
		}
	}
	if v := os.Getenv("GMSELECT_PARALLEL"); v != "" {
		cfg.Selection.Parallel = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GMSELECT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("GMSELECT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GMSELECT_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("GMSELECT_METRICS_ADDRESS"); v != "" {
		cfg.MetricsAddress = v
	}
	if v := os.Getenv("GMSELECT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GMSELECT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

// Validate rejects configurations that cannot produce a run.
func (c *Config) Validate() error {
	s := c.Selection
	if s.Count <= 0 {
		return fmt.Errorf("selection.count must be positive, got %d", s.Count)
	}
	if s.Trials <= 0 {
		return fmt.Errorf("selection.trials must be positive, got %d", s.Trials)
	}
	if s.Passes < 0 {
		return fmt.Errorf("selection.passes must not be negative, got %d", s.Passes)
	}
	if len(s.Periods) == 0 {
		r := s.PeriodRange
		if r.Count < 2 || r.MinPeriod <= 0 || r.MaxPeriod <= r.MinPeriod {
			return fmt.Errorf("selection.periodRange must span at least two positive periods")
		}
	} else {
		for i, p := range s.Periods {
			if p <= 0 {
				return fmt.Errorf("selection.periods[%d] must be positive, got %g", i, p)
			}
		}
	}
	if s.Conditional && s.ConditioningPeriod <= 0 {
		return fmt.Errorf("selection.conditioningPeriod must be positive, got %g", s.ConditioningPeriod)
	}
	if s.ScalingEnabled && s.MaxScaleFactor < 1 {
		return fmt.Errorf("selection.maxScaleFactor must be at least 1, got %g", s.MaxScaleFactor)
	}
	switch s.Metric {
	case "sse", "dstat":
	default:
		return fmt.Errorf("selection.metric must be sse or dstat, got %q", s.Metric)
	}
	switch s.Sampling {
	case "latin", "monte":
	default:
		return fmt.Errorf("selection.sampling must be latin or monte, got %q", s.Sampling)
	}
	if s.Weights.Mean < 0 || s.Weights.Stdev < 0 {
		return fmt.Errorf("selection.weights must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite", "csv":
	default:
		return fmt.Errorf("database.driver must be sqlite or csv, got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	return nil
}

// Periods returns the configured grid: the explicit list when given, otherwise
// a log-spaced grid over the configured range.
func (c *Config) Periods() []float64 {
	if len(c.Selection.Periods) > 0 {
		return append([]float64(nil), c.Selection.Periods...)
	}
	r := c.Selection.PeriodRange
	periods := make([]float64, r.Count)
	step := (math.Log(r.MaxPeriod) - math.Log(r.MinPeriod)) / float64(r.Count-1)
	for i := range periods {
		periods[i] = math.Exp(math.Log(r.MinPeriod) + float64(i)*step)
	}
	return periods
}
