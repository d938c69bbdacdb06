package metric

import (
	"fmt"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
)

// Phase selects which measured duration a Runtime metric reports.
type Phase string

// Phases measured by the runner.
const (
	Training          Phase = "Training"
	InBetweenTraining Phase = "InBetweenTraining"
	Testing           Phase = "Testing"
)

// Resolution is the unit a Runtime metric reports in.
type Resolution string

// Resolutions.
const (
	Milliseconds Resolution = "Milliseconds"
	Seconds      Resolution = "Seconds"
	Minutes      Resolution = "Minutes"
	Hours        Resolution = "Hours"
)

// Runtime reports a duration measured outside the metric. Evaluate is a no-op.
type Runtime struct {
	base
	phase      Phase
	resolution Resolution
	value      float64
}

// NewRuntime creates a runtime metric.
func NewRuntime(name, algorithm string, phase Phase, resolution Resolution) (*Runtime, error) {
	switch phase {
	case Training, InBetweenTraining, Testing:
	default:
		return nil, fmt.Errorf("%w: runtime type %q", ErrInvalidType, phase)
	}
	switch resolution {
	case "":
		resolution = Milliseconds
	case Milliseconds, Seconds, Minutes, Hours:
	default:
		return nil, fmt.Errorf("%w: resolution %q", ErrInvalidType, resolution)
	}
	return &Runtime{base: newBase(name, algorithm, 0), phase: phase, resolution: resolution}, nil
}

// Phase returns the measured phase.
func (m *Runtime) Phase() Phase { return m.phase }

// Evaluate implements Metric.
func (*Runtime) Evaluate(*model.Click, []int64, model.IDSet) error { return nil }

// SetRuntime stores a duration given in (possibly fractional) milliseconds.
func (m *Runtime) SetRuntime(ms float64) {
	switch m.resolution {
	case Seconds:
		m.value = ms / float64(time.Second/time.Millisecond)
	case Minutes:
		m.value = ms / float64(time.Minute/time.Millisecond)
	case Hours:
		m.value = ms / float64(time.Hour/time.Millisecond)
	default:
		m.value = ms
	}
}

// Result implements Metric.
func (m *Runtime) Result() float64 { return m.value }
