// Package algorithm defines the recommender contract and the wrapper that
// applies per-algorithm training policy (incremental training interval and
// whole-history recommendation) on top of it.
package algorithm

import (
	"context"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
)

// Recommender is implemented by every recommendation algorithm.
//
// Train receives newly published items and newly observed clicks; either
// may be empty. Recommend returns item ids, best first. A recommender is
// only ever used by one goroutine.
type Recommender interface {
	Train(ctx context.Context, items []*model.Item, clicks []*model.ClickData) error
	Recommend(ctx context.Context, data *model.ClickData) ([]int64, error)
}

// Option configures an Algorithm.
type Option func(*Algorithm)

// WithTrainingInterval buffers incremental training until the buffered
// clicks span at least the given number of whole minutes. Zero or less
// forwards every call immediately.
func WithTrainingInterval(minutes int) Option {
	return func(a *Algorithm) {
		a.interval = minutes
	}
}

// WithWholeUserHistory makes Recommend see the user's whole history in
// place of the current session.
func WithWholeUserHistory(enabled bool) Option {
	return func(a *Algorithm) {
		a.wholeHistory = enabled
	}
}

// Algorithm is a named recommender plus its training policy.
type Algorithm struct {
	name         string
	rec          Recommender
	interval     int
	wholeHistory bool

	bufItems  []*model.Item
	bufClicks []*model.ClickData
	watermark time.Time
	marked    bool
}

// New wraps rec under name.
func New(name string, rec Recommender, opts ...Option) *Algorithm {
	a := &Algorithm{name: name, rec: rec}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the display name.
func (a *Algorithm) Name() string { return a.name }

// Recommender returns the wrapped implementation.
func (a *Algorithm) Recommender() Recommender { return a.rec }

// Train forwards or buffers a training call according to the interval.
// The watermark starts at the first buffered click; a flush happens once
// the last buffered click is at least interval minutes past it, and moves
// the watermark to that click.
func (a *Algorithm) Train(ctx context.Context, items []*model.Item, clicks []*model.ClickData) error {
	if a.interval <= 0 {
		return a.rec.Train(ctx, items, clicks)
	}
	a.bufItems = append(a.bufItems, items...)
	a.bufClicks = append(a.bufClicks, clicks...)
	if len(a.bufClicks) == 0 {
		return nil
	}
	if !a.marked {
		a.watermark = a.bufClicks[0].Click.Timestamp
		a.marked = true
	}
	last := a.bufClicks[len(a.bufClicks)-1].Click.Timestamp
	if int(last.Sub(a.watermark)/time.Minute) < a.interval {
		return nil
	}
	items, clicks = a.bufItems, a.bufClicks
	a.bufItems, a.bufClicks = nil, nil
	a.watermark = last
	return a.rec.Train(ctx, items, clicks)
}

// Pending returns the number of buffered items and clicks.
func (a *Algorithm) Pending() (items, clicks int) {
	return len(a.bufItems), len(a.bufClicks)
}

// Recommend asks the recommender for a list.
func (a *Algorithm) Recommend(ctx context.Context, data *model.ClickData) ([]int64, error) {
	if a.wholeHistory {
		data = &model.ClickData{Click: data.Click, Session: data.History, History: data.History}
	}
	return a.rec.Recommend(ctx, data)
}
