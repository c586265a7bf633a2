// Command punts runs the punt direction pipeline over one input table and
// writes the report, per-event labels, charts and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/puntscope/internal/adapters/input"
	"github.com/okian/puntscope/internal/adapters/render"
	"github.com/okian/puntscope/internal/adapters/report"
	service "github.com/okian/puntscope/internal/app"
	"github.com/okian/puntscope/internal/config"
	"github.com/okian/puntscope/internal/domain/vmf"
	"github.com/okian/puntscope/pkg/logger"
	"github.com/okian/puntscope/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default: $PUNTS_CONFIG)")
	flag.Parse()

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(ctx, *configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		logger.Get().Fatal(ctx, "failed to load config", logger.Error(err))
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		logger.Get().Fatal(ctx, "invalid log_format", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Fatal(ctx, "run failed", logger.Error(err))
	}
}

// outputs lists what run wrote.
type outputs struct {
	Report  string
	Events  string
	Charts  []string
	Metrics string
}

// run loads the input, executes the pipeline and writes every output.
// Chart failures are logged and do not fail the run.
func run(ctx context.Context, cfg *config.Config) error {
	_, err := runWithOutputs(ctx, cfg)
	return err
}

func runWithOutputs(ctx context.Context, cfg *config.Config) (*outputs, error) {
	log := logger.Get().Named("punts")
	started := time.Now().UTC()

	loaded, err := input.Load(ctx, cfg.Format(), cfg.InputPath, input.WithTable(cfg.SQLiteTable))
	if err != nil {
		return nil, err
	}
	for _, rej := range loaded.Rejected {
		log.Warn(ctx, "row rejected by loader", logger.Error(rej))
		metrics.RecordEventRejected("load")
	}

	svc := newService(cfg)
	res, err := svc.Run(ctx, loaded.Events)
	if err != nil {
		return nil, err
	}

	rep := report.Build(report.Meta{
		InputPath:   cfg.InputPath,
		InputFormat: cfg.Format(),
		StartedAt:   started,
	}, res, loaded.Rejected)

	out := &outputs{}
	if out.Report, err = report.WriteJSON(cfg.OutputDir, rep); err != nil {
		return nil, err
	}
	if out.Events, err = report.WriteEventsCSV(cfg.OutputDir, rep.RunID, res.Rows, res.Interpretation); err != nil {
		return nil, err
	}

	if cfg.RenderCharts {
		out.Charts = renderCharts(ctx, log, cfg, res)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return nil, err
		}
		out.Metrics = cfg.MetricsFile
	}

	log.Info(ctx, "run finished",
		logger.String("runID", rep.RunID),
		logger.Int("selectedK", res.Selected.Pair.K),
		logger.String("regime", string(res.Selected.Pair.Regime)),
		logger.String("report", out.Report),
		logger.Duration("elapsed", time.Since(started)))
	return out, nil
}

func newService(cfg *config.Config) *service.Service {
	fitter := vmf.NewEMFitter(
		vmf.WithMaxIterations(cfg.MaxIterations),
		vmf.WithTolerance(cfg.Tolerance),
		vmf.WithMaxKappa(cfg.MaxKappa),
	)
	return service.New(
		service.WithLogger(logger.Get().Named("pipeline")),
		service.WithField(cfg.FieldLength, cfg.Midpoint, cfg.EndZone),
		service.WithAngleBins(cfg.AngleBins),
		service.WithZoneBreaks(cfg.ZoneShortEdge, cfg.ZoneMidEdge),
		service.WithKRange(cfg.KMin, cfg.KMax),
		service.WithRestarts(cfg.Restarts),
		service.WithSeed(cfg.Seed),
		service.WithFitter(fitter),
		service.WithFitTimeout(time.Duration(cfg.FitTimeoutMS)*time.Millisecond),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
}

func renderCharts(ctx context.Context, log logger.Logger, cfg *config.Config, res *service.Result) []string {
	r := render.New(cfg.OutputDir, cfg.ChartFormat)
	charts := []struct {
		name string
		draw func() (string, error)
	}{
		{"directions", func() (string, error) { return r.DirectionChart(res.Table) }},
		{"clusters", func() (string, error) { return r.ClusterScatter(res.Rows, res.Interpretation) }},
		{"bic", func() (string, error) { return r.BICCurve(res.Ranking) }},
	}

	var written []string
	for _, c := range charts {
		path, err := c.draw()
		switch {
		case errors.Is(err, render.ErrNothingToDraw):
			log.Debug(ctx, "chart skipped", logger.String("chart", c.name))
		case err != nil:
			log.Warn(ctx, "chart failed", logger.String("chart", c.name), logger.Error(err))
		default:
			written = append(written, path)
		}
	}
	return written
}
