// Package workpackage builds the shared replay sequence from the test events.
package workpackage

import (
	"context"

	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/session"
	"github.com/okian/streamrec/pkg/logger"
)

// progressSteps is how often construction progress is logged (every 10%).
const progressSteps = 10

// Builder turns events into work packages in a single sequential pass. It
// owns the causal tracker and the per-user history, so training clicks and
// test clicks must go through the same Builder in time order.
type Builder struct {
	causal  *session.CausalTracker
	history map[int64]model.Session
	logger  logger.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for progress output.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Builder segmenting sessions with rule.
func New(rule session.Rule, opts ...Option) *Builder {
	b := &Builder{
		causal:  session.NewCausalTracker(rule),
		history: make(map[int64]model.Session),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// clickData records c in the causal state and returns its causal view.
func (b *Builder) clickData(c *model.Click) *model.ClickData {
	live := b.causal.AddClick(c)
	h := append(b.history[c.UserID], c)
	b.history[c.UserID] = h
	return &model.ClickData{
		Click:   c,
		Session: live.Snapshot(),
		History: h.Snapshot(),
	}
}

// TrainingClicks wraps training clicks into causal views.
func (b *Builder) TrainingClicks(clicks []*model.Click) []*model.ClickData {
	out := make([]*model.ClickData, len(clicks))
	for i, c := range clicks {
		out[i] = b.clickData(c)
	}
	return out
}

// Build emits one work package per event. The oracle must have been fed
// every click of events and is only used to compute ground truth.
func (b *Builder) Build(ctx context.Context, events []model.Event, oracle *session.OracleTracker) []model.WorkPackage {
	out := make([]model.WorkPackage, 0, len(events))
	next := 0
	for i, e := range events {
		if b.logger != nil {
			if pct := int(float64(i+1) / float64(len(events)) * progressSteps); pct == next {
				b.logger.Info(ctx, "creating work packages", logger.Int("progress", pct*progressSteps))
				next++
			}
		}
		switch ev := e.(type) {
		case *model.Item:
			out = append(out, model.Announcement{Item: ev})
		case *model.Click:
			cd := b.clickData(ev)
			out = append(out, model.Evaluation{
				Data:        cd,
				GroundTruth: GroundTruth(oracle.GetSession(ev), cd.Session),
			})
		}
	}
	return out
}

// GroundTruth is the set of items of the complete session that the user has
// not clicked yet in the session so far.
func GroundTruth(complete, soFar model.Session) model.IDSet {
	return complete.ItemIDs().Minus(soFar.ItemIDs())
}
