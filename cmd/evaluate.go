package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/streamrec/internal/adapters/repository"
	"github.com/okian/streamrec/internal/app"
	"github.com/okian/streamrec/internal/config"
	"github.com/okian/streamrec/pkg/logger"
)

// evaluateFlags mirror the config keys that can be overridden per run.
type evaluateFlags struct {
	items, clicks        string
	algorithms, metrics  string
	outputDir            string
	threads              int
	split                float64
	splitByTime          bool
	sessionInactivity    bool
	sessionThresholdMS   int64
	sessionLengthFilter  int
	oldFormat, dedup     bool
	outputStats, smirnov bool
	metricsAddr          string
	noConsoleFiles       bool
}

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	f := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Replay a dataset past every configured algorithm and score it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(cmd.Context(), configPath(root))
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			root.applyLogLevel(cmd, cfg.LogLevel)
			return runEvaluation(cmd, cfg, !f.noConsoleFiles)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.items, "items", "i", "", "item input file in CSV format")
	fs.StringVarP(&f.clicks, "clicks", "c", "", "click input file in CSV format")
	fs.StringVarP(&f.algorithms, "algorithm-config", "a", "", "algorithm JSON config file")
	fs.StringVarP(&f.metrics, "metrics-config", "m", "", "metrics JSON config file")
	fs.StringVarP(&f.outputDir, "output-dir", "o", "", "folder receiving one sub folder per run")
	fs.IntVarP(&f.threads, "thread-count", "t", 0, "number of algorithms evaluated at once")
	fs.Float64Var(&f.split, "split-threshold", 0, "share of events used for training")
	fs.BoolVar(&f.splitByTime, "split-by-time", false, "split on time instead of event count")
	fs.BoolVar(&f.sessionInactivity, "session-inactivity-threshold", false, "cut sessions after inactivity instead of at midnight")
	fs.Int64Var(&f.sessionThresholdMS, "session-time-threshold", 0, "inactivity threshold in milliseconds")
	fs.IntVar(&f.sessionLengthFilter, "session-length-filter", 0, "remove sessions with at most this many clicks")
	fs.BoolVarP(&f.oldFormat, "old-file-format", "f", false, "read the old click file format")
	fs.BoolVarP(&f.dedup, "deduplicate", "d", false, "remove repeated clicks")
	fs.BoolVarP(&f.outputStats, "output-stats", "s", false, "print dataset statistics and significance tests")
	fs.BoolVar(&f.smirnov, "smirnov", false, "use the Kolmogorov-Smirnov test instead of the t-test")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	fs.BoolVar(&f.noConsoleFiles, "no-console-files", false, "do not copy console output into the run folder")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (f *evaluateFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("items", func() { cfg.ItemsFile = f.items })
	set("clicks", func() { cfg.ClicksFile = f.clicks })
	set("algorithm-config", func() { cfg.AlgorithmConfig = f.algorithms })
	set("metrics-config", func() { cfg.MetricsConfig = f.metrics })
	set("output-dir", func() { cfg.OutputDir = f.outputDir })
	set("thread-count", func() { cfg.ThreadCount = f.threads })
	set("split-threshold", func() { cfg.SplitThreshold = f.split })
	set("split-by-time", func() { cfg.SplitByTime = f.splitByTime })
	set("session-inactivity-threshold", func() { cfg.SessionInactivityThreshold = f.sessionInactivity })
	set("session-time-threshold", func() { cfg.SessionTimeThresholdMS = f.sessionThresholdMS })
	set("session-length-filter", func() { cfg.SessionLengthFilter = f.sessionLengthFilter })
	set("old-file-format", func() { cfg.OldFileFormat = f.oldFormat })
	set("deduplicate", func() { cfg.Deduplicate = f.dedup })
	set("output-stats", func() { cfg.OutputStats = f.outputStats })
	set("smirnov", func() {
		if f.smirnov {
			cfg.StatTest = "smirnov"
		}
	})
	set("metrics-addr", func() { cfg.MetricsAddr = f.metricsAddr })
}

func runEvaluation(cmd *cobra.Command, cfg *config.Config, consoleFiles bool) error {
	ctx := cmd.Context()
	log := logger.Get().Named("evaluate")

	started := time.Now()
	clock := func() time.Time { return started }
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if consoleFiles {
		start := started.Format(repository.StartTimeLayout)
		tee, err := teeConsole(filepath.Join(cfg.OutputDir, start), start, stdout, stderr)
		if err != nil {
			return err
		}
		defer tee.Close()
		stdout, stderr = tee.Stdout, tee.Stderr
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := startMetricsServer(ctx, cfg.MetricsAddr)
		defer stopMetrics()
	}

	e := app.NewEvaluator(cfg, app.WithOutput(stdout), app.WithClock(clock), app.WithLogger(log))
	log.Info(ctx, "starting evaluation",
		logger.String("run_id", e.RunID()),
		logger.String("output", e.OutputDir()),
		logger.Int("threads", cfg.ThreadCount))

	report, err := e.Run(ctx)
	if errors.Is(err, app.ErrRunnersFailed) {
		for _, failed := range report.Failed() {
			fmt.Fprintf(stderr, "%s failed: %v\n", failed.Name, failed.Err)
		}
		return err
	}
	if err != nil {
		return err
	}
	log.Info(ctx, "evaluation finished", logger.String("results", report.ResultsPath))
	return nil
}

// configPath prefers --config over the environment.
func configPath(root *rootOptions) string {
	if root.configFile != "" {
		return root.configFile
	}
	return os.Getenv(config.EnvConfig)
}
