// Command punt-gen writes a synthetic punt dataset with known direction
// clusters in the CSV layout the punts command reads.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/puntscope/internal/synth"
	"github.com/okian/puntscope/pkg/logger"
)

const defaultTimeout = 5 * time.Minute

func main() {
	defaults := synth.DefaultConfig()
	var (
		numEvents     = flag.Int("events", defaults.NumEvents, "Number of unique punts to generate")
		playsPerGame  = flag.Int("plays", defaults.PlaysPerGame, "Punts sharing one game ID")
		clusters      = flag.String("clusters", "-25:25,25:25", "Direction clusters as angle:kappa[:weight], comma separated")
		width         = flag.Float64("width", defaults.Field.MaxY, "Field width")
		distanceMean  = flag.Float64("distance", defaults.DistanceMean, "Mean kick distance")
		distanceSigma = flag.Float64("sigma", defaults.DistanceSigma, "Kick distance jitter (0 disables)")
		farHalf       = flag.Float64("far", defaults.FarHalfRate, "Share of punts from the far half")
		duplicates    = flag.Float64("dupes", 0, "Share of punts emitted twice")
		seed          = flag.Int64("seed", defaults.Seed, "Random seed")
		output        = flag.String("output", "", "Output CSV file (default: punts_TIMESTAMP.csv)")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get().Named("punt-gen")

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	parsed, err := synth.ParseClusters(*clusters)
	if err != nil {
		log.Fatal(ctx, "invalid clusters", logger.Error(err))
	}

	cfg := defaults
	cfg.NumEvents = *numEvents
	cfg.PlaysPerGame = *playsPerGame
	cfg.Clusters = parsed
	cfg.Field.MaxY = *width
	cfg.DistanceMean = *distanceMean
	cfg.DistanceSigma = *distanceSigma
	cfg.FarHalfRate = *farHalf
	cfg.DuplicateRate = *duplicates
	cfg.Seed = *seed

	g, err := synth.NewGenerator(cfg)
	if err != nil {
		log.Fatal(ctx, "invalid generator config", logger.Error(err))
	}
	ds, err := g.Generate(ctx)
	if err != nil {
		log.Fatal(ctx, "generation failed", logger.Error(err))
	}

	path := *output
	if path == "" {
		path = "punts_" + time.Now().Format("20060102_150405") + ".csv"
	}
	if err := synth.WriteCSVFile(path, ds); err != nil {
		log.Fatal(ctx, "write dataset", logger.Error(err))
	}
	log.Info(ctx, "dataset written",
		logger.String("path", path),
		logger.Int("events", len(ds.Events)),
		logger.Int("duplicates", ds.Duplicates))
}
