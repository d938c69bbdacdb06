// Package split partitions the time-ordered event stream into a training
// prefix and a test suffix.
package split

import (
	"errors"
	"sort"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
)

// Mode selects how the cut-off point is found.
type Mode int

const (
	// ByEventCount puts the first threshold fraction of events into training.
	ByEventCount Mode = iota
	// ByTime puts events before start+(end-start)*threshold into training.
	ByTime
)

// DefaultThreshold is the fraction of data used for training.
const DefaultThreshold = 0.7

// ErrInvalidThreshold is returned when the threshold is outside [0, 1].
var ErrInvalidThreshold = errors.New("split threshold must be within [0, 1]")

// Splitter cuts a dataset into training and test events.
type Splitter struct {
	mode      Mode
	threshold float64
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithMode sets the split mode.
func WithMode(m Mode) Option {
	return func(s *Splitter) { s.mode = m }
}

// WithThreshold sets the training fraction.
func WithThreshold(t float64) Option {
	return func(s *Splitter) { s.threshold = t }
}

// New creates a splitter, by event count at 0.7 unless configured otherwise.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{mode: ByEventCount, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	if s.threshold < 0 || s.threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	return s, nil
}

// Merge returns items and clicks as one stream sorted by event time. Ties
// keep items (by id) ahead of clicks, and clicks in their original order.
func Merge(raw *model.RawData) []model.Event {
	items := raw.SortedItems()
	events := make([]model.Event, 0, len(items)+len(raw.Clicks))
	for _, it := range items {
		events = append(events, it)
	}
	for _, c := range raw.Clicks {
		events = append(events, c)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTime().Before(events[j].EventTime())
	})
	return events
}

// Split merges raw into one sorted stream and cuts it.
func (s *Splitter) Split(raw *model.RawData) *model.SplitData {
	events := Merge(raw)
	if len(events) == 0 {
		return &model.SplitData{}
	}
	var cut int
	switch s.mode {
	case ByTime:
		start := events[0].EventTime()
		end := events[len(events)-1].EventTime()
		cutoff := start.Add(time.Duration(float64(end.Sub(start)) * s.threshold))
		cut = sort.Search(len(events), func(i int) bool {
			return !events[i].EventTime().Before(cutoff)
		})
	default:
		cut = int(float64(len(events)) * s.threshold)
	}
	return &model.SplitData{
		Training: events[:cut:cut],
		Test:     events[cut:],
	}
}
