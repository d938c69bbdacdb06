package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/streamrec/internal/config"
	"github.com/okian/streamrec/pkg/logger"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "streamrec",
		Short:         "Evaluate news recommendation algorithms on replayed click streams",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newEvaluateCommand(opts),
		newStatTestCommand(opts),
		newMergeCommand(opts),
		newDedupCommand(opts),
		newGenerateCommand(opts),
	)
	return root
}

// applyLogLevel sets the flag level, falling back to info on invalid input.
func (o *rootOptions) applyLogLevel(cmd *cobra.Command, fallback string) {
	level := o.logLevel
	if level == "" {
		level = fallback
	}
	if level == "" {
		return
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}
