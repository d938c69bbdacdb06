package app

import (
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/session"
)

// Summary describes one distribution.
type Summary struct {
	N      int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Median float64
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	return Summary{
		N:      len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
}

// DatasetStats are the verbose statistics of a loaded dataset.
type DatasetStats struct {
	Items             int
	Clicks            int
	Users             int
	ClicksPerUser     Summary
	ClicksPerItem     Summary
	ClicksPerSession  Summary
	SessionsPerUser   Summary
	SessionDurationMS Summary // sessions with at least two clicks
	Categories        map[int]int
}

// DescribeDataset computes DatasetStats, segmenting sessions with rule.
func DescribeDataset(raw *model.RawData, rule session.Rule) DatasetStats {
	perUser := make(map[int64]float64)
	perItem := make(map[int64]float64)
	categories := make(map[int]int)
	for _, c := range raw.Clicks {
		perUser[c.UserID]++
		perItem[c.ItemID()]++
		categories[c.Item.Category]++
	}

	var perSession, duration []float64
	sessionsPerUser := make(map[int64]float64)
	session.NewOracleTracker(rule, raw.Clicks).Sessions(func(user int64, s model.Session) {
		perSession = append(perSession, float64(len(s)))
		sessionsPerUser[user]++
		if len(s) > 1 {
			duration = append(duration, float64(s.Last().Timestamp.Sub(s[0].Timestamp).Milliseconds()))
		}
	})

	return DatasetStats{
		Items:             len(raw.Items),
		Clicks:            len(raw.Clicks),
		Users:             len(perUser),
		ClicksPerUser:     summarize(values(perUser)),
		ClicksPerItem:     summarize(values(perItem)),
		ClicksPerSession:  summarize(perSession),
		SessionsPerUser:   summarize(values(sessionsPerUser)),
		SessionDurationMS: summarize(duration),
		Categories:        categories,
	}
}

func values(m map[int64]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// Render writes the statistics as console tables.
func (s DatasetStats) Render(w io.Writer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Dataset: " + strconv.Itoa(s.Items) + " items, " + strconv.Itoa(s.Clicks) + " clicks, " + strconv.Itoa(s.Users) + " users")
	tw.AppendHeader(table.Row{"", "N", "Min", "Max", "Mean", "Std. dev.", "Median"})
	for _, row := range []struct {
		name string
		sum  Summary
	}{
		{"Clicks per user", s.ClicksPerUser},
		{"Clicks per item", s.ClicksPerItem},
		{"Clicks per session", s.ClicksPerSession},
		{"Sessions per user", s.SessionsPerUser},
		{"Length of session in MS", s.SessionDurationMS},
	} {
		tw.AppendRow(table.Row{row.name, row.sum.N, f2(row.sum.Min), f2(row.sum.Max), f2(row.sum.Mean), f2(row.sum.StdDev), f2(row.sum.Median)})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()

	cats := make([]int, 0, len(s.Categories))
	for c := range s.Categories {
		cats = append(cats, c)
	}
	sort.Ints(cats)
	ct := table.NewWriter()
	ct.SetOutputMirror(w)
	ct.SetTitle("Categories: " + strconv.Itoa(len(cats)))
	ct.AppendHeader(table.Row{"Category", "Clicks", "Share"})
	for _, c := range cats {
		share := float64(s.Categories[c]) / float64(s.Clicks) * 100
		ct.AppendRow(table.Row{c, s.Categories[c], strconv.FormatFloat(share, 'f', 1, 64) + "%"})
	}
	ct.SetStyle(table.StyleLight)
	ct.Render()
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
