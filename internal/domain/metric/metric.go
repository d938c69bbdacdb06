// Package metric scores recommendation lists against ground truth.
//
// A metric instance belongs to exactly one algorithm and is only touched by
// that algorithm's runner, so implementations are not synchronized.
package metric

import (
	"gonum.org/v1/gonum/stat"

	"github.com/okian/streamrec/internal/domain/model"
)

// DefaultK is the list cutoff used when a definition sets none.
const DefaultK = 10

// Metric accumulates one quality or runtime figure for one algorithm.
type Metric interface {
	Name() string
	Algorithm() string
	// Evaluate scores one recommendation list. groundTruth holds the item
	// ids the user will still click in the current session.
	Evaluate(click *model.Click, recs []int64, groundTruth model.IDSet) error
	// Result is the final aggregate value.
	Result() float64
}

// Testable metrics expose one value per scored sample so that two
// algorithms can be compared with a paired significance test.
type Testable interface {
	Metric
	Detailed() []float64
}

type base struct {
	name      string
	algorithm string
	k         int
}

func newBase(name, algorithm string, k int) base {
	if k <= 0 {
		k = DefaultK
	}
	return base{name: name, algorithm: algorithm, k: k}
}

func (b base) Name() string      { return b.name }
func (b base) Algorithm() string { return b.algorithm }

// K returns the list cutoff.
func (b base) K() int { return b.k }

// average is NaN for an empty sample.
func average(values []float64) float64 {
	return stat.Mean(values, nil)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// topK returns the first min(k, len(recs)) ids and fails when one repeats.
func topK(recs []int64, k int) ([]int64, error) {
	if len(recs) > k {
		recs = recs[:k]
	}
	seen := make(model.IDSet, len(recs))
	for _, id := range recs {
		if !seen.Add(id) {
			return nil, ErrDuplicateRecommendation
		}
	}
	return recs, nil
}
