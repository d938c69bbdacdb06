package synthetic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/streamrec/internal/adapters/loader"
	"github.com/okian/streamrec/pkg/logger"
)

// File names written by Run.
const (
	ItemsFile  = "Items.csv"
	ClicksFile = "Clicks.csv"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run generates a dataset and writes it to dir as Items.csv and Clicks.csv.
func Run(ctx context.Context, cfg Config, dir string, out io.Writer) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	raw, err := Generate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dataset generation failed: %w", err)
	}

	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := loader.WriteItemsFile(filepath.Join(dir, ItemsFile), raw.SortedItems()); err != nil {
		return nil, err
	}
	if err := loader.WriteClicksFile(filepath.Join(dir, ClicksFile), raw.Clicks); err != nil {
		return nil, err
	}

	users := make(map[int64]struct{})
	for _, c := range raw.Clicks {
		users[c.UserID] = struct{}{}
	}
	stats.Items = len(raw.Items)
	stats.Clicks = len(raw.Clicks)
	stats.Users = len(users)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logger.Get().Info(ctx, "dataset written", logger.String("dir", dir))
	displayFinalStats(out, stats)
	return stats, nil
}

// displayFinalStats prints the generation summary.
func displayFinalStats(w io.Writer, stats *Stats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Synthetic dataset")
	tw.AppendRows([]table.Row{
		{"Items", stats.Items},
		{"Clicks", stats.Clicks},
		{"Users with clicks", stats.Users},
		{"Duration", stats.Duration.Round(time.Millisecond)},
	})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
