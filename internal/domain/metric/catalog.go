package metric

import (
	"github.com/okian/streamrec/internal/domain/model"
)

// Coverage is the average list length relative to k.
type Coverage struct {
	base
	lengths []float64
}

// NewCoverage creates a coverage metric.
func NewCoverage(name, algorithm string, k int) *Coverage {
	return &Coverage{base: newBase(name, algorithm, k)}
}

// Evaluate implements Metric. Every call counts, ground truth is ignored.
func (m *Coverage) Evaluate(_ *model.Click, recs []int64, _ model.IDSet) error {
	m.lengths = append(m.lengths, float64(min(len(recs), m.k)))
	return nil
}

// Result implements Metric.
func (m *Coverage) Result() float64 {
	return average(m.lengths) / float64(m.k)
}

// NbRecItems counts the distinct items that ever appeared in a top-k list.
type NbRecItems struct {
	base
	seen model.IDSet
}

// NewNbRecItems creates a distinct-recommended-items metric.
func NewNbRecItems(name, algorithm string, k int) *NbRecItems {
	return &NbRecItems{base: newBase(name, algorithm, k), seen: make(model.IDSet)}
}

// Evaluate implements Metric.
func (m *NbRecItems) Evaluate(_ *model.Click, recs []int64, _ model.IDSet) error {
	if len(recs) > m.k {
		recs = recs[:m.k]
	}
	for _, id := range recs {
		m.seen.Add(id)
	}
	return nil
}

// Result implements Metric.
func (m *NbRecItems) Result() float64 { return float64(m.seen.Len()) }
