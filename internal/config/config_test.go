package config_test

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/okian/puntscope/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.FieldLength, convey.ShouldEqual, 120)
			convey.So(cfg.Midpoint, convey.ShouldEqual, 60)
			convey.So(cfg.AngleBins, convey.ShouldEqual, 40)
			convey.So(cfg.KMin, convey.ShouldEqual, 1)
			convey.So(cfg.KMax, convey.ShouldEqual, 10)
			convey.So(cfg.Restarts, convey.ShouldEqual, 20)
			convey.So(cfg.MaxIterations, convey.ShouldEqual, 500)
			convey.So(cfg.Tolerance, convey.ShouldEqual, 1.5e-8)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Format(t *testing.T) {
	convey.Convey("Given input paths", t, func() {
		cfg := config.New()

		convey.Convey("Then the format is inferred from the extension", func() {
			cfg.InputPath = "punts.csv"
			convey.So(cfg.Format(), convey.ShouldEqual, config.FormatCSV)
			cfg.InputPath = "season.DB"
			convey.So(cfg.Format(), convey.ShouldEqual, config.FormatSQLite)
			cfg.InputPath = "season.sqlite3"
			convey.So(cfg.Format(), convey.ShouldEqual, config.FormatSQLite)
		})

		convey.Convey("Then an explicit format wins", func() {
			cfg.InputPath = "punts.csv"
			cfg.InputFormat = "SQLite"
			convey.So(cfg.Format(), convey.ShouldEqual, config.FormatSQLite)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"field length", func(c *config.Config) { c.FieldLength = 0 }, "field_length"},
		{"midpoint", func(c *config.Config) { c.Midpoint = 130 }, "midpoint"},
		{"angle bins", func(c *config.Config) { c.AngleBins = 0 }, "angle_bins"},
		{"zones", func(c *config.Config) { c.ZoneShortEdge = 20 }, "zone_short_edge"},
		{"k range", func(c *config.Config) { c.KMin, c.KMax = 3, 2 }, "k range"},
		{"k zero", func(c *config.Config) { c.KMin = 0 }, "k range"},
		{"restarts", func(c *config.Config) { c.Restarts = 0 }, "restarts"},
		{"workers", func(c *config.Config) { c.WorkerCount = 0 }, "worker_count"},
		{"queue", func(c *config.Config) { c.QueueSize = 0 }, "queue_size"},
		{"format", func(c *config.Config) { c.InputFormat = "xlsx" }, "input_format"},
		{"chart", func(c *config.Config) { c.ChartFormat = "gif" }, "chart_format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
