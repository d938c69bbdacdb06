package stattest

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	sep  = ";"
	lsep = "\n"
)

func formatP(p float64) string {
	if math.IsNaN(p) {
		return ""
	}
	return strconv.FormatFloat(p, 'f', 7, 64)
}

// Format renders matrices as semicolon-separated text: the metric name, a
// header row of algorithms, one row per algorithm, then two blank lines.
func Format(ms []Matrix) string {
	var sb strings.Builder
	for _, m := range ms {
		sb.WriteString(m.Metric)
		sb.WriteString(lsep)
		sb.WriteString(sep)
		for _, a := range m.Algorithms {
			sb.WriteString(a)
			sb.WriteString(sep)
		}
		sb.WriteString(lsep)
		for i, a := range m.Algorithms {
			sb.WriteString(a)
			sb.WriteString(sep)
			for j := range m.Algorithms {
				sb.WriteString(formatP(m.PValues[i][j]))
				sb.WriteString(sep)
			}
			sb.WriteString(lsep)
		}
		sb.WriteString(lsep)
		sb.WriteString(lsep)
	}
	return sb.String()
}

// Render writes each matrix as a console table.
func Render(w io.Writer, ms []Matrix) {
	for _, m := range ms {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetTitle(m.Metric)
		header := table.Row{""}
		for _, a := range m.Algorithms {
			header = append(header, a)
		}
		tw.AppendHeader(header)
		for i, a := range m.Algorithms {
			row := table.Row{a}
			for j := range m.Algorithms {
				row = append(row, formatP(m.PValues[i][j]))
			}
			tw.AppendRow(row)
		}
		tw.SetStyle(table.StyleLight)
		tw.Render()
	}
}
