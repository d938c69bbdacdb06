package metric

import (
	"fmt"

	"github.com/okian/streamrec/internal/domain/model"
)

// Kind selects what PrecisionOrRecall divides the hit count by.
type Kind string

// Kinds of PrecisionOrRecall.
const (
	Precision Kind = "Precision"
	Recall    Kind = "Recall"
)

// PrecisionOrRecall measures hits in the top-k list.
// Precision divides by the list length, Recall by the ground truth size.
type PrecisionOrRecall struct {
	base
	kind    Kind
	results []float64
}

// NewPrecisionOrRecall creates a precision or recall metric.
func NewPrecisionOrRecall(name, algorithm string, kind Kind, k int) (*PrecisionOrRecall, error) {
	if kind != Precision && kind != Recall {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidType, kind)
	}
	return &PrecisionOrRecall{base: newBase(name, algorithm, k), kind: kind}, nil
}

// Evaluate implements Metric. Clicks without ground truth are skipped and an
// empty list scores 0.
func (m *PrecisionOrRecall) Evaluate(_ *model.Click, recs []int64, gt model.IDSet) error {
	if gt.Len() == 0 {
		return nil
	}
	if len(recs) == 0 {
		m.results = append(m.results, 0)
		return nil
	}
	top, err := topK(recs, m.k)
	if err != nil {
		return err
	}
	hits := 0
	for _, id := range top {
		if gt.Has(id) {
			hits++
		}
	}
	if m.kind == Precision {
		m.results = append(m.results, float64(hits)/float64(len(top)))
	} else {
		m.results = append(m.results, float64(hits)/float64(gt.Len()))
	}
	return nil
}

// Result implements Metric.
func (m *PrecisionOrRecall) Result() float64 { return average(m.results) }

// Detailed implements Testable.
func (m *PrecisionOrRecall) Detailed() []float64 { return m.results }

// F1 is the harmonic mean of mean precision and mean recall.
type F1 struct {
	base
	precision *PrecisionOrRecall
	recall    *PrecisionOrRecall
}

// NewF1 creates a macro F1 metric.
func NewF1(name, algorithm string, k int) *F1 {
	b := newBase(name, algorithm, k)
	return &F1{
		base:      b,
		precision: &PrecisionOrRecall{base: b, kind: Precision},
		recall:    &PrecisionOrRecall{base: b, kind: Recall},
	}
}

// Evaluate implements Metric.
func (m *F1) Evaluate(click *model.Click, recs []int64, gt model.IDSet) error {
	if err := m.precision.Evaluate(click, recs, gt); err != nil {
		return err
	}
	return m.recall.Evaluate(click, recs, gt)
}

// Result implements Metric.
func (m *F1) Result() float64 {
	return harmonic(m.precision.Result(), m.recall.Result())
}

// MeanF1 averages the per-sample harmonic mean of precision and recall.
type MeanF1 struct {
	F1
}

// NewMeanF1 creates a micro F1 metric.
func NewMeanF1(name, algorithm string, k int) *MeanF1 {
	return &MeanF1{F1: *NewF1(name, algorithm, k)}
}

// Detailed implements Testable.
func (m *MeanF1) Detailed() []float64 {
	p, r := m.precision.Detailed(), m.recall.Detailed()
	out := make([]float64, len(p))
	for i := range p {
		out[i] = harmonic(p[i], r[i])
	}
	return out
}

// Result implements Metric.
func (m *MeanF1) Result() float64 { return average(m.Detailed()) }

// MRR is the mean reciprocal rank of the first hit in the top-k list.
type MRR struct {
	base
	results []float64
}

// NewMRR creates a mean reciprocal rank metric.
func NewMRR(name, algorithm string, k int) *MRR {
	return &MRR{base: newBase(name, algorithm, k)}
}

// Evaluate implements Metric.
func (m *MRR) Evaluate(_ *model.Click, recs []int64, gt model.IDSet) error {
	if gt.Len() == 0 {
		return nil
	}
	if len(recs) == 0 {
		m.results = append(m.results, 0)
		return nil
	}
	top, err := topK(recs, m.k)
	if err != nil {
		return err
	}
	rr := 0.0
	for i, id := range top {
		if gt.Has(id) {
			rr = 1 / float64(i+1)
			break
		}
	}
	m.results = append(m.results, rr)
	return nil
}

// Result implements Metric.
func (m *MRR) Result() float64 { return average(m.results) }

// Detailed implements Testable.
func (m *MRR) Detailed() []float64 { return m.results }
