package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/streamrec/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.SessionInactivityThreshold, convey.ShouldBeFalse)
			convey.So(cfg.SessionThreshold(), convey.ShouldEqual, 20*time.Minute)
			convey.So(cfg.SessionLengthFilter, convey.ShouldEqual, 1)
			convey.So(cfg.SplitThreshold, convey.ShouldEqual, 0.7)
			convey.So(cfg.SplitByTime, convey.ShouldBeFalse)
			convey.So(cfg.ThreadCount, convey.ShouldEqual, max(1, runtime.NumCPU()-1))
			convey.So(cfg.Deduplicate, convey.ShouldBeFalse)
			convey.So(cfg.DedupeWindow(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.StatTest, convey.ShouldEqual, "ttest")
			convey.So(cfg.MetricsAddr, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the split threshold is out of range", func() {
			cfg.SplitThreshold = 1

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When no thread is allowed", func() {
			cfg.ThreadCount = 0

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the stat test is unknown", func() {
			cfg.StatTest = "anova"

			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "stat_test")
		})

		convey.Convey("When the time zone is unknown", func() {
			cfg.SessionTimezone = "Nowhere/Atlantis"

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the time zone is named", func() {
			cfg.SessionTimezone = "UTC"
			loc, err := cfg.Location()

			convey.So(err, convey.ShouldBeNil)
			convey.So(loc, convey.ShouldEqual, time.UTC)
		})
	})
}
