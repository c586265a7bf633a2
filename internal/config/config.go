// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Input formats understood by the loader.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// InputPath is the CSV file or SQLite database to read punts from.
	InputPath string `koanf:"input_path"`

	// InputFormat is csv or sqlite. Empty means infer from the file extension.
	InputFormat string `koanf:"input_format"`

	// SQLiteTable names the table holding punt rows.
	SQLiteTable string `koanf:"sqlite_table"`

	// OutputDir receives report.json, events.csv and charts.
	OutputDir string `koanf:"output_dir"`

	// Field geometry in yards.
	FieldLength float64 `koanf:"field_length"`
	Midpoint    float64 `koanf:"midpoint"`
	EndZone     float64 `koanf:"end_zone"`

	// AngleBins is the number of equal-width direction buckets.
	AngleBins int `koanf:"angle_bins"`

	// ZoneShortEdge and ZoneMidEdge are the yard-line breaks of FieldBucketX.
	ZoneShortEdge float64 `koanf:"zone_short_edge"`
	ZoneMidEdge   float64 `koanf:"zone_mid_edge"`

	// KMin and KMax bound the component counts of the sweep.
	KMin int `koanf:"k_min"`
	KMax int `koanf:"k_max"`

	// Restarts is the number of random EM restarts per (k, regime) pair.
	Restarts int `koanf:"restarts"`

	// MaxIterations caps EM iterations per restart.
	MaxIterations int `koanf:"max_iterations"`

	// Tolerance is the relative log-likelihood convergence threshold.
	Tolerance float64 `koanf:"tolerance"`

	// MaxKappa caps component concentrations.
	MaxKappa float64 `koanf:"max_kappa"`

	// FitTimeoutMS bounds a single (k, regime) fit. Zero disables the timeout.
	FitTimeoutMS int `koanf:"fit_timeout_ms"`

	// WorkerCount sets the number of fit workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the fit job queue.
	QueueSize int `koanf:"queue_size"`

	// Seed is the base seed all restart seeds derive from.
	Seed int64 `koanf:"seed"`

	// DedupeSize bounds the duplicate-key cache. Zero means unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// RenderCharts toggles chart output; ChartFormat is png or svg.
	RenderCharts bool   `koanf:"render_charts"`
	ChartFormat  string `koanf:"chart_format"`

	// MetricsFile, when set, receives a Prometheus textfile after the run.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		InputFormat:   "",
		SQLiteTable:   "punts",
		OutputDir:     "out",
		FieldLength:   120,
		Midpoint:      60,
		EndZone:       10,
		AngleBins:     40,
		ZoneShortEdge: 10,
		ZoneMidEdge:   20,
		KMin:          1,
		KMax:          10,
		Restarts:      20,
		MaxIterations: 500,
		Tolerance:     1.5e-8,
		MaxKappa:      500,
		FitTimeoutMS:  60_000,
		WorkerCount:   runtime.NumCPU(),
		QueueSize:     64,
		Seed:          1,
		DedupeSize:    0,
		RenderCharts:  true,
		ChartFormat:   "png",
	}
}

// Format returns the effective input format, inferring it from InputPath.
func (c *Config) Format() string {
	if c.InputFormat != "" {
		return strings.ToLower(c.InputFormat)
	}
	lower := strings.ToLower(c.InputPath)
	if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3") {
		return FormatSQLite
	}
	return FormatCSV
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.FieldLength <= 0 {
		problems = append(problems, "field_length must be positive")
	}
	if c.Midpoint <= 0 || c.Midpoint >= c.FieldLength {
		problems = append(problems, "midpoint must lie inside the field")
	}
	if c.EndZone < 0 {
		problems = append(problems, "end_zone must not be negative")
	}
	if c.AngleBins < 1 {
		problems = append(problems, "angle_bins must be at least 1")
	}
	if c.ZoneShortEdge >= c.ZoneMidEdge {
		problems = append(problems, "zone_short_edge must be below zone_mid_edge")
	}
	if c.KMin < 1 || c.KMax < c.KMin {
		problems = append(problems, "k range must satisfy 1 <= k_min <= k_max")
	}
	if c.Restarts < 1 {
		problems = append(problems, "restarts must be at least 1")
	}
	if c.MaxIterations < 1 {
		problems = append(problems, "max_iterations must be at least 1")
	}
	if c.Tolerance <= 0 {
		problems = append(problems, "tolerance must be positive")
	}
	if c.MaxKappa <= 0 {
		problems = append(problems, "max_kappa must be positive")
	}
	if c.FitTimeoutMS < 0 {
		problems = append(problems, "fit_timeout_ms must not be negative")
	}
	if c.WorkerCount < 1 {
		problems = append(problems, "worker_count must be at least 1")
	}
	if c.QueueSize < 1 {
		problems = append(problems, "queue_size must be at least 1")
	}
	if c.DedupeSize < 0 {
		problems = append(problems, "dedupe_size must not be negative")
	}
	if f := c.Format(); f != FormatCSV && f != FormatSQLite {
		problems = append(problems, fmt.Sprintf("unknown input_format %q", c.InputFormat))
	}
	if cf := strings.ToLower(c.ChartFormat); cf != "png" && cf != "svg" {
		problems = append(problems, fmt.Sprintf("unknown chart_format %q", c.ChartFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
