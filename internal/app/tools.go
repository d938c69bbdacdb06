package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/streamrec/internal/adapters/loader"
	"github.com/okian/streamrec/internal/adapters/repository"
	"github.com/okian/streamrec/internal/domain/dedupe"
	"github.com/okian/streamrec/internal/domain/stattest"
	"github.com/okian/streamrec/pkg/logger"
)

// Retest runs significance tests over the detailed artifacts of a finished
// run folder and writes the matrices to w, as text or as tables.
func Retest(ctx context.Context, dir string, kind stattest.Kind, w io.Writer, asTable bool) ([]stattest.Matrix, error) {
	series, err := repository.ReadDetailed(dir)
	if err != nil {
		return nil, err
	}
	tester, err := stattest.New(kind, stattest.WithLogger(logger.Get().Named("stattest")))
	if err != nil {
		return nil, err
	}
	matrices := tester.Execute(ctx, series)
	if asTable {
		stattest.Render(w, matrices)
	} else {
		fmt.Fprint(w, stattest.Format(matrices))
	}
	return matrices, nil
}

// DedupOptions configure DedupClicks.
type DedupOptions struct {
	ItemsFile  string
	ClicksFile string
	OutFile    string
	OldFormat  bool
	Window     time.Duration
}

// DedupClicks reads a dataset, removes duplicate clicks and writes the
// remaining clicks in the current format. It also converts old-format
// click files.
func DedupClicks(ctx context.Context, opts DedupOptions) (loader.Stats, error) {
	window := opts.Window
	if window <= 0 {
		window = dedupe.DefaultWindow
	}
	raw, st, err := loader.NewReader(opts.ItemsFile, opts.ClicksFile,
		loader.WithOldFormat(opts.OldFormat),
		loader.WithDeduper(dedupe.NewClickDeduper(dedupe.WithWindow(window))),
	).Read(ctx)
	if err != nil {
		return st, err
	}
	if err := loader.WriteClicksFile(opts.OutFile, raw.Clicks); err != nil {
		return st, err
	}
	logger.Get().Info(ctx, "deduplicated clicks written",
		logger.String("file", opts.OutFile),
		logger.Int("clicks", len(raw.Clicks)),
		logger.Int("duplicates", st.Duplicates))
	return st, nil
}
