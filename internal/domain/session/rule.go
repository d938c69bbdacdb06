// Package session segments user clicks into sessions.
//
// Two tracker types exist on purpose: CausalTracker only ever sees clicks up
// to the current replay position, OracleTracker is fed the complete test
// phase and is used for grading only.
package session

import (
	"time"
)

// DefaultThreshold is the inactivity gap used when none is configured.
const DefaultThreshold = 20 * time.Minute

// Rule decides whether two consecutive clicks of a user share a session.
type Rule struct {
	// Inactivity selects gap-based segmentation; otherwise sessions are cut at midnight.
	Inactivity bool
	// Threshold is the maximum gap inside one session (inactivity mode only).
	Threshold time.Duration
	// Location defines calendar days in day mode. Nil means time.Local.
	Location *time.Location
}

// SameSession reports whether next continues the session whose last click was at prev.
func (r Rule) SameSession(prev, next time.Time) bool {
	if r.Inactivity {
		return next.Sub(prev) <= r.Threshold
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	py, pm, pd := prev.In(loc).Date()
	ny, nm, nd := next.In(loc).Date()
	return py == ny && pm == nm && pd == nd
}
