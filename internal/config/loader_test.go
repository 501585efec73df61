package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/label"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WindowSize, convey.ShouldEqual, 10)
				convey.So(cfg.Target, convey.ShouldEqual, label.TargetWin)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PITWALL_WINDOW_SIZE", "5")
			_ = os.Setenv("PITWALL_TARGET", "points")
			_ = os.Setenv("PITWALL_REQUIRE_QUALIFYING", "false")
			_ = os.Setenv("PITWALL_MIN_YEAR", "1996")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WindowSize, convey.ShouldEqual, 5)
				convey.So(cfg.Target, convey.ShouldEqual, label.TargetPoints)
				convey.So(cfg.RequireQualifying, convey.ShouldBeFalse)
				convey.So(cfg.MinYear, convey.ShouldEqual, 1996)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
window_size: 20
data_dir: /data/f1
max_year: 2021
na_values: ["NA"]
`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should merge the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WindowSize, convey.ShouldEqual, 20)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/data/f1")
				convey.So(cfg.MaxYear, convey.ShouldEqual, 2021)
				convey.So(cfg.MinYear, convey.ShouldEqual, 2003)
				convey.So(cfg.NAValues, convey.ShouldResemble, []string{"NA"})
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile("window_size: 20\nworker_count: 3\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PITWALL_CONFIG", tmpFile)
			_ = os.Setenv("PITWALL_WINDOW_SIZE", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WindowSize, convey.ShouldEqual, 7)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("PITWALL_WINDOW_SIZE", "ten")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("PITWALL_TARGET", "fastest_lap")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"PITWALL_CONFIG",
		"PITWALL_WINDOW_SIZE",
		"PITWALL_TARGET",
		"PITWALL_REQUIRE_QUALIFYING",
		"PITWALL_MIN_YEAR",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "pitwall-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
