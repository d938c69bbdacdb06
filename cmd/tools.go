package main

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/streamrec/internal/adapters/repository"
	"github.com/okian/streamrec/internal/app"
	"github.com/okian/streamrec/internal/domain/dedupe"
	"github.com/okian/streamrec/internal/domain/stattest"
	"github.com/okian/streamrec/internal/synthetic"
)

// defaultMergeOutput is written when --output is not given.
const defaultMergeOutput = "merged_results.csv"

func newStatTestCommand(root *rootOptions) *cobra.Command {
	var smirnov, table bool
	cmd := &cobra.Command{
		Use:   "stattest <folder>",
		Short: "Rerun the significance tests over the detailed results of a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root.applyLogLevel(cmd, "")
			kind := stattest.TTest
			if smirnov {
				kind = stattest.Smirnov
			}
			_, err := app.Retest(cmd.Context(), args[0], kind, cmd.OutOrStdout(), table)
			return err
		},
	}
	cmd.Flags().BoolVar(&smirnov, "smirnov", false, "use the Kolmogorov-Smirnov test instead of the t-test")
	cmd.Flags().BoolVar(&table, "table", false, "render the matrices as tables")
	return cmd
}

func newMergeCommand(root *rootOptions) *cobra.Command {
	var pattern, output string
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Merge result files of several runs into one table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root.applyLogLevel(cmd, "")
			var publisher *regexp.Regexp
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("publisher pattern: %w", err)
				}
				publisher = re
			}
			if err := repository.MergeResultFiles(args, publisher, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d files into %s\n", len(args), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "publisher", "p", "", "regular expression whose first group extracts the publisher from the input file names")
	cmd.Flags().StringVarP(&output, "output", "o", defaultMergeOutput, "merged output file")
	return cmd
}

func newDedupCommand(root *rootOptions) *cobra.Command {
	opts := app.DedupOptions{}
	var windowMS int64
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate clicks and write them in the current click format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root.applyLogLevel(cmd, "")
			opts.Window = time.Duration(windowMS) * time.Millisecond
			st, err := app.DedupClicks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d clicks read, %d duplicates removed, %d unknown items skipped\n",
				st.ClickLines, st.Duplicates, st.Unknown)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.ItemsFile, "items", "i", "", "item input file")
	fs.StringVarP(&opts.ClicksFile, "clicks", "c", "", "click input file")
	fs.StringVarP(&opts.OutFile, "output", "o", "", "deduplicated click file")
	fs.BoolVarP(&opts.OldFormat, "old-file-format", "f", false, "read the old click file format")
	fs.Int64Var(&windowMS, "window", dedupe.DefaultWindow.Milliseconds(), "clicks of a user on an item closer than this many milliseconds are duplicates")
	_ = cmd.MarkFlagRequired("items")
	_ = cmd.MarkFlagRequired("clicks")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	cfg := synthetic.DefaultConfig()
	var dir, start string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic Items.csv and Clicks.csv for trying out the harness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root.applyLogLevel(cmd, "")
			if start != "" {
				t, err := time.ParseInLocation(time.DateOnly, start, time.Local)
				if err != nil {
					return fmt.Errorf("start: %w", err)
				}
				cfg.Start = t
			}
			_, err := synthetic.Run(cmd.Context(), cfg, dir, cmd.OutOrStdout())
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&dir, "output-dir", "o", "data", "folder receiving Items.csv and Clicks.csv")
	fs.IntVar(&cfg.Items, "items", cfg.Items, "number of items")
	fs.IntVar(&cfg.Users, "users", cfg.Users, "number of users")
	fs.IntVar(&cfg.Sessions, "sessions", cfg.Sessions, "maximum sessions per user")
	fs.IntVar(&cfg.Publishers, "publishers", cfg.Publishers, "number of publishers")
	fs.IntVar(&cfg.Categories, "categories", cfg.Categories, "number of categories")
	fs.DurationVar(&cfg.Span, "span", cfg.Span, "time covered by the dataset")
	fs.StringVar(&start, "start", "", "first publication day, YYYY-MM-DD")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "goroutines generating users")
	return cmd
}
