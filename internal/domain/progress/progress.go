// Package progress aggregates per-algorithm replay progress into one
// console line with an ETA.
package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/streamrec/pkg/metrics"
)

// DefaultWindow is the number of percentage crossings the ETA is based on.
const DefaultWindow = 20

// Option configures a Reporter.
type Option func(*Reporter)

// WithWriter sets the destination of progress lines.
func WithWriter(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.out = w
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithWindow sets the ETA window size.
func WithWindow(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.window = n
		}
	}
}

// Reporter is shared by all runners of one evaluation.
type Reporter struct {
	mu         sync.Mutex
	algorithms int
	counts     map[int]int // percentage -> number of reports
	stamps     []time.Time
	window     int
	out        io.Writer
	now        func() time.Time
}

// NewReporter creates a reporter for the given number of algorithms.
func NewReporter(algorithms int, opts ...Option) *Reporter {
	r := &Reporter{
		algorithms: algorithms,
		counts:     make(map[int]int),
		window:     DefaultWindow,
		out:        os.Stdout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report records that one algorithm reached pct and prints the aggregate
// line. The printed line is returned.
func (r *Reporter) Report(pct int) string {
	return r.advance(pct, pct)
}

// advance records that one algorithm crossed every percentage from first
// to pct and prints one line.
func (r *Reporter) advance(first, pct int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := first; i <= pct; i++ {
		r.counts[i]++
	}

	// Every algorithm crosses each percentage once, so counts[i] is the
	// number of algorithms at or past i.
	var detail strings.Builder
	detail.WriteString("Detailed progress: ")
	acc, accounted := 0, 0
	for i := 100; i >= 0; i-- {
		n, ok := r.counts[i]
		if !ok {
			continue
		}
		exact := n - accounted
		accounted += exact
		if exact > 0 {
			acc += i * exact
			fmt.Fprintf(&detail, "%d|%d ", exact, i)
		}
	}
	if training := r.algorithms - accounted; training > 0 {
		fmt.Fprintf(&detail, "%d|T", training)
	}

	overall := 0.0
	if r.algorithms > 0 {
		overall = float64(acc) / float64(r.algorithms)
	}
	metrics.UpdateOverallProgress(overall)

	var line strings.Builder
	line.WriteString("Approx. overall progress: ")
	line.WriteString(strconv.FormatFloat(overall, 'f', 1, 64))
	line.WriteString("%. ")

	// One stamp per crossed percentage keeps the window in points.
	now := r.now()
	for i := first; i <= pct; i++ {
		r.stamps = append(r.stamps, now)
	}
	if len(r.stamps) > r.window {
		r.stamps = r.stamps[len(r.stamps)-r.window-1:]
		elapsed := now.Sub(r.stamps[0]).Milliseconds()
		remaining := float64(r.algorithms*100-acc) * float64(elapsed) / float64(r.window)
		r.stamps = r.stamps[1:]
		line.WriteString("ETA: ")
		line.WriteString(FormatETA(time.Duration(remaining) * time.Millisecond))
	}
	line.WriteString(detail.String())

	out := line.String()
	fmt.Fprintln(r.out, out)
	return out
}

// FormatETA renders d as "HH h MM m SS s ".
func FormatETA(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d h %02d m %02d s ", h, m, s)
}

// Tracker converts one runner's position into percentage reports.
type Tracker struct {
	reporter  *Reporter
	algorithm string
	total     int
	next      int
}

// Track starts tracking a replay of total work packages.
func (r *Reporter) Track(algorithm string, total int) *Tracker {
	return &Tracker{reporter: r, algorithm: algorithm, total: total}
}

// Step is called after the package at index i has been taken. It reports
// when a new integer percentage is first crossed and returns it. Short
// replays cross several percentages per package.
func (t *Tracker) Step(i int) (int, bool) {
	if t.total <= 0 {
		return 0, false
	}
	pct := int(float64(i+1) / float64(t.total) * 100)
	if pct < t.next {
		return pct, false
	}
	t.reporter.advance(t.next, pct)
	t.next = pct + 1
	metrics.UpdateAlgorithmProgress(t.algorithm, pct)
	return pct, true
}
