package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/puntscope/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.KMax, convey.ShouldEqual, 10)
				convey.So(cfg.SQLiteTable, convey.ShouldEqual, "punts")
				convey.So(cfg.RenderCharts, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PUNTS_K_MAX", "4")
			_ = os.Setenv("PUNTS_RESTARTS", "5")
			_ = os.Setenv("PUNTS_TOLERANCE", "1e-6")
			_ = os.Setenv("PUNTS_RENDER_CHARTS", "false")
			_ = os.Setenv("PUNTS_INPUT_PATH", "season.csv")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KMax, convey.ShouldEqual, 4)
				convey.So(cfg.Restarts, convey.ShouldEqual, 5)
				convey.So(cfg.Tolerance, convey.ShouldEqual, 1e-6)
				convey.So(cfg.RenderCharts, convey.ShouldBeFalse)
				convey.So(cfg.InputPath, convey.ShouldEqual, "season.csv")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
k_min: 2
k_max: 6
angle_bins: 36
seed: 42
input_format: sqlite
sqlite_table: season_punts
`)
			_ = os.Setenv("PUNTS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KMin, convey.ShouldEqual, 2)
				convey.So(cfg.KMax, convey.ShouldEqual, 6)
				convey.So(cfg.AngleBins, convey.ShouldEqual, 36)
				convey.So(cfg.Seed, convey.ShouldEqual, 42)
				convey.So(cfg.Format(), convey.ShouldEqual, config.FormatSQLite)
				convey.So(cfg.SQLiteTable, convey.ShouldEqual, "season_punts")
				convey.So(cfg.Restarts, convey.ShouldEqual, 20) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
k_max: 6
worker_count: 3
`)
			_ = os.Setenv("PUNTS_CONFIG", tmpFile)
			_ = os.Setenv("PUNTS_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KMax, convey.ShouldEqual, 6)        // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8) // Overridden by env
			})
		})

		convey.Convey("When loading an explicit file path", func() {
			clearConfigEnvVars()
			tmpFile := createTempConfigFile(t, "restarts: 3\n")

			cfg, err := config.LoadFile(ctx, tmpFile)

			convey.Convey("Then the file layer should apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Restarts, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("PUNTS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PUNTS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PUNTS_K_MAX", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an inverted k range", func() {
			_ = os.Setenv("PUNTS_K_MIN", "5")
			_ = os.Setenv("PUNTS_K_MAX", "2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "k range")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "punts.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"PUNTS_CONFIG",
		"PUNTS_K_MIN",
		"PUNTS_K_MAX",
		"PUNTS_RESTARTS",
		"PUNTS_TOLERANCE",
		"PUNTS_RENDER_CHARTS",
		"PUNTS_INPUT_PATH",
		"PUNTS_WORKER_COUNT",
	} {
		_ = os.Unsetenv(key)
	}
}
