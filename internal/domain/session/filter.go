package session

import (
	"github.com/okian/streamrec/internal/domain/model"
)

// FilterShortSessions removes every click that belongs to a session with at
// most minLength clicks. A minLength of 0 or less returns clicks unchanged.
func FilterShortSessions(clicks []*model.Click, rule Rule, minLength int) []*model.Click {
	if minLength <= 0 {
		return clicks
	}
	remove := make(map[*model.Click]struct{})
	NewOracleTracker(rule, clicks).Sessions(func(_ int64, s model.Session) {
		if len(s) <= minLength {
			for _, c := range s {
				remove[c] = struct{}{}
			}
		}
	})
	out := make([]*model.Click, 0, len(clicks)-len(remove))
	for _, c := range clicks {
		if _, drop := remove[c]; !drop {
			out = append(out, c)
		}
	}
	return out
}
