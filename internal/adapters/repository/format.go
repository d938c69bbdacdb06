package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a metric value with seven decimals.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', 7, 64)
}

// FormatPeriod renders d like an ISO-8601 time period without the "PT"
// prefix, e.g. "20M", "1H30M", "1.500S".
func FormatPeriod(d time.Duration) string {
	ms := d.Milliseconds()
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	h := ms / int64(time.Hour/time.Millisecond)
	ms -= h * int64(time.Hour/time.Millisecond)
	m := ms / int64(time.Minute/time.Millisecond)
	ms -= m * int64(time.Minute/time.Millisecond)
	s := ms / 1000
	milli := ms % 1000

	var sb strings.Builder
	if h > 0 {
		fmt.Fprintf(&sb, "%s%dH", sign, h)
	}
	if m > 0 {
		fmt.Fprintf(&sb, "%s%dM", sign, m)
	}
	switch {
	case milli > 0:
		fmt.Fprintf(&sb, "%s%d.%03dS", sign, s, milli)
	case s > 0:
		fmt.Fprintf(&sb, "%s%dS", sign, s)
	}
	if sb.Len() == 0 {
		return "0S"
	}
	return sb.String()
}

// FormatThreshold renders a split threshold the way a double prints,
// always with a fractional part ("0.7", "1.0").
func FormatThreshold(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}
