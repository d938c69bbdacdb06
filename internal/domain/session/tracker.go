package session

import (
	"github.com/okian/streamrec/internal/domain/model"
)

// store keeps every session of every user in arrival order.
type store struct {
	rule     Rule
	sessions map[int64][]model.Session
}

func newStore(rule Rule) store {
	return store{rule: rule, sessions: make(map[int64][]model.Session)}
}

// add appends c to the user's open session or starts a new one and returns
// the index of the session c landed in.
func (s *store) add(c *model.Click) int {
	list := s.sessions[c.UserID]
	if n := len(list); n > 0 {
		last := list[n-1]
		if s.rule.SameSession(last.Last().Timestamp, c.Timestamp) {
			list[n-1] = append(last, c)
			return n - 1
		}
	}
	s.sessions[c.UserID] = append(list, model.Session{c})
	return len(list)
}

// CausalTracker assigns clicks to sessions in replay order. It must only be
// fed clicks up to the current replay position.
type CausalTracker struct {
	st store
}

// NewCausalTracker creates an empty tracker.
func NewCausalTracker(rule Rule) *CausalTracker {
	return &CausalTracker{st: newStore(rule)}
}

// AddClick records c and returns the session it was appended to. The
// returned slice keeps growing with later clicks of the same session, so
// callers that hand it out must take a Snapshot.
func (t *CausalTracker) AddClick(c *model.Click) model.Session {
	idx := t.st.add(c)
	return t.st.sessions[c.UserID][idx]
}

// Users returns the number of users seen so far.
func (t *CausalTracker) Users() int { return len(t.st.sessions) }

// OracleTracker knows the complete future of the test phase and resolves the
// full session of any click it was fed. It is never exposed to algorithms.
type OracleTracker struct {
	st store
}

// NewOracleTracker creates an oracle fed with clicks, which must be time ordered.
func NewOracleTracker(rule Rule, clicks []*model.Click) *OracleTracker {
	o := &OracleTracker{st: newStore(rule)}
	for _, c := range clicks {
		o.st.add(c)
	}
	return o
}

// GetSession returns the complete session containing c, compared by
// identity. It returns nil when c was never fed.
func (o *OracleTracker) GetSession(c *model.Click) model.Session {
	for _, s := range o.st.sessions[c.UserID] {
		for _, other := range s {
			if other == c {
				return s
			}
		}
	}
	return nil
}

// Sessions calls fn for every session of every user.
func (o *OracleTracker) Sessions(fn func(userID int64, s model.Session)) {
	for user, list := range o.st.sessions {
		for _, s := range list {
			fn(user, s)
		}
	}
}
