// Package stattest compares per-sample metric values of algorithms with
// pairwise significance tests.
package stattest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/streamrec/pkg/logger"
)

// Series is the detailed result of one metric for one algorithm.
type Series struct {
	Algorithm string    `json:"algorithm"`
	Metric    string    `json:"metric"`
	Values    []float64 `json:"values"`
}

// Test returns the p-value for the null hypothesis that a and b come from
// the same distribution.
type Test func(a, b []float64) (float64, error)

// Kind names a built-in test.
type Kind string

// Built-in tests.
const (
	TTest   Kind = "ttest"
	Smirnov Kind = "smirnov"
)

// ForKind returns the test function for kind.
func ForKind(kind Kind) (Test, error) {
	switch kind {
	case TTest, "":
		return PairedTTest, nil
	case Smirnov:
		return KolmogorovSmirnov, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTest, kind)
	}
}

// PairedTTest is the two-tailed paired Student t-test.
func PairedTTest(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d samples", ErrDimensionMismatch, len(a), len(b))
	}
	n := len(a)
	if n < 2 {
		return 0, fmt.Errorf("%w: %d", ErrTooFewSamples, n)
	}
	diff := make([]float64, n)
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	mean, sd := stat.MeanStdDev(diff, nil)
	if sd == 0 {
		if mean == 0 {
			return 1, nil
		}
		return 0, nil
	}
	t := mean / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	return math.Min(1, 2*dist.Survival(math.Abs(t))), nil
}

// KolmogorovSmirnov is the two-sample Kolmogorov-Smirnov test with the
// asymptotic p-value.
func KolmogorovSmirnov(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: %d and %d", ErrTooFewSamples, len(a), len(b))
	}
	x := append([]float64(nil), a...)
	y := append([]float64(nil), b...)
	sort.Float64s(x)
	sort.Float64s(y)
	d := stat.KolmogorovSmirnov(x, nil, y, nil)

	n, m := float64(len(x)), float64(len(y))
	en := math.Sqrt(n * m / (n + m))
	return ksProbability((en + 0.12 + 0.11/en) * d), nil
}

// ksProbability is the Kolmogorov distribution tail Q_KS(lambda).
func ksProbability(lambda float64) float64 {
	const (
		maxTerms = 100
		eps1     = 1e-3
		eps2     = 1e-8
	)
	a2 := -2 * lambda * lambda
	sign := 2.0
	sum, prev := 0.0, 0.0
	for j := 1; j <= maxTerms; j++ {
		term := sign * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return math.Max(0, math.Min(1, sum))
		}
		sign = -sign
		prev = math.Abs(term)
	}
	// not converged: lambda is tiny, the distributions are indistinguishable
	return 1
}

// Matrix holds the pairwise p-values of one metric. Cells that could not
// be computed, and the diagonal, are NaN.
type Matrix struct {
	Metric     string
	Algorithms []string
	PValues    [][]float64
}

// Option configures a Tester.
type Option func(*Tester)

// WithLogger sets the logger for skipped cells.
func WithLogger(l logger.Logger) Option {
	return func(t *Tester) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tester runs one test over all algorithm pairs.
type Tester struct {
	test   Test
	logger logger.Logger
}

// New creates a Tester for kind.
func New(kind Kind, opts ...Option) (*Tester, error) {
	test, err := ForKind(kind)
	if err != nil {
		return nil, err
	}
	t := &Tester{test: test}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Execute groups series by metric and fills one matrix per metric. Metrics
// and algorithms keep their order of first appearance.
func (t *Tester) Execute(ctx context.Context, series []Series) []Matrix {
	var algorithms, metrics []string
	seenAlg := make(map[string]bool)
	byMetric := make(map[string]map[string][]float64)
	for _, s := range series {
		if !seenAlg[s.Algorithm] {
			seenAlg[s.Algorithm] = true
			algorithms = append(algorithms, s.Algorithm)
		}
		if _, ok := byMetric[s.Metric]; !ok {
			byMetric[s.Metric] = make(map[string][]float64)
			metrics = append(metrics, s.Metric)
		}
		byMetric[s.Metric][s.Algorithm] = s.Values
	}

	out := make([]Matrix, 0, len(metrics))
	for _, name := range metrics {
		values := byMetric[name]
		m := Matrix{Metric: name, Algorithms: algorithms, PValues: make([][]float64, len(algorithms))}
		for i, a1 := range algorithms {
			m.PValues[i] = make([]float64, len(algorithms))
			for j, a2 := range algorithms {
				m.PValues[i][j] = math.NaN()
				if i == j {
					continue
				}
				v1, ok1 := values[a1]
				v2, ok2 := values[a2]
				if !ok1 || !ok2 {
					t.skip(ctx, name, a1, a2, ErrMissingSeries)
					continue
				}
				p, err := t.test(v1, v2)
				if err != nil {
					t.skip(ctx, name, a1, a2, err)
					continue
				}
				m.PValues[i][j] = p
			}
		}
		out = append(out, m)
	}
	return out
}

func (t *Tester) skip(ctx context.Context, metric, a1, a2 string, err error) {
	if t.logger == nil {
		return
	}
	t.logger.Warn(ctx, "significance test skipped",
		logger.String("metric", metric),
		logger.String("algorithm", a1),
		logger.String("other_algorithm", a2),
		logger.Error(err),
	)
}
