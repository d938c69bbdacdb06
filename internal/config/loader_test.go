package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/streamrec/internal/config"
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
				convey.So(cfg, convey.ShouldResemble, config.New(ctx))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STREAMREC_THREAD_COUNT", "3")
			_ = os.Setenv("STREAMREC_SPLIT_THRESHOLD", "0.8")
			_ = os.Setenv("STREAMREC_DEDUPLICATE", "true")
			_ = os.Setenv("STREAMREC_ITEMS_FILE", "/data/items.csv")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ThreadCount, convey.ShouldEqual, 3)
				convey.So(cfg.SplitThreshold, convey.ShouldEqual, 0.8)
				convey.So(cfg.Deduplicate, convey.ShouldBeTrue)
				convey.So(cfg.ItemsFile, convey.ShouldEqual, "/data/items.csv")
			})
		})

		convey.Convey("When loading config with a partial YAML file", func() {
			yamlContent := `
session_inactivity_threshold: true
session_time_threshold_ms: 1800000
thread_count: 2
stat_test: smirnov
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STREAMREC_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SessionInactivityThreshold, convey.ShouldBeTrue)
				convey.So(cfg.SessionTimeThresholdMS, convey.ShouldEqual, 1_800_000)
				convey.So(cfg.ThreadCount, convey.ShouldEqual, 2)
				convey.So(cfg.StatTest, convey.ShouldEqual, "smirnov")
				convey.So(cfg.SplitThreshold, convey.ShouldEqual, 0.7) // From defaults
				convey.So(cfg.SessionLengthFilter, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("thread_count: 2\noutput_dir: out\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STREAMREC_THREAD_COUNT", "5") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.LoadFrom(ctx, tmpFile)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ThreadCount, convey.ShouldEqual, 5)
				convey.So(cfg.OutputDir, convey.ShouldEqual, "out")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.LoadFrom(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.LoadFrom(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values are invalid", func() {
			_ = os.Setenv("STREAMREC_SPLIT_THRESHOLD", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "split_threshold")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"STREAMREC_CONFIG",
		"STREAMREC_THREAD_COUNT",
		"STREAMREC_SPLIT_THRESHOLD",
		"STREAMREC_DEDUPLICATE",
		"STREAMREC_ITEMS_FILE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "streamrec-config-*.yaml")
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
