// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// Event is either an *Item announcement or a *Click. The set of
// implementations is closed.
type Event interface {
	// EventTime is the timestamp the event is ordered by.
	EventTime() time.Time
	isEvent()
}

// Item is a piece of content that can be recommended. Identity is ID.
type Item struct {
	ID        int64          // item identifier
	Publisher int            // publisher/domain identifier
	CreatedAt time.Time      // publication time, used as the event time
	URL       string         // canonical URL
	Title     string         // plain-text title
	Category  int            // optional category id (0 when unknown)
	Text      string         // optional plain-text body
	Keywords  map[string]int // optional keyword -> weight
}

// EventTime implements Event.
func (i *Item) EventTime() time.Time { return i.CreatedAt }

func (*Item) isEvent() {}

// Click is a single user interaction with an item.
type Click struct {
	Item      *Item     // clicked item, shared by reference
	UserID    int64     // user identifier
	Timestamp time.Time // click time
}

// EventTime implements Event.
func (c *Click) EventTime() time.Time { return c.Timestamp }

func (*Click) isEvent() {}

// ItemID returns the id of the clicked item.
func (c *Click) ItemID() int64 { return c.Item.ID }

// Session is an ordered run of one user's clicks.
type Session []*Click

// ItemIDs returns the distinct item ids of the session.
func (s Session) ItemIDs() IDSet {
	ids := make(IDSet, len(s))
	for _, c := range s {
		ids.Add(c.ItemID())
	}
	return ids
}

// Last returns the most recent click of the session, nil when empty.
func (s Session) Last() *Click {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// Snapshot returns a copy of the session that later appends cannot reach.
func (s Session) Snapshot() Session {
	out := make(Session, len(s))
	copy(out, s)
	return out
}

// ClickData is the causal view of one click: the click, the session so far
// and the user's whole history so far. Both slices are private copies.
type ClickData struct {
	Click   *Click
	Session Session
	History Session
}

// RawData is the loaded dataset before splitting.
type RawData struct {
	Items  map[int64]*Item
	Clicks []*Click
}

// SplitData holds the time-ordered training and test event lists.
type SplitData struct {
	Training []Event
	Test     []Event
}

// Partition separates an event list into its items and clicks, keeping order.
func Partition(events []Event) ([]*Item, []*Click) {
	var items []*Item
	var clicks []*Click
	for _, e := range events {
		switch ev := e.(type) {
		case *Item:
			items = append(items, ev)
		case *Click:
			clicks = append(clicks, ev)
		}
	}
	return items, clicks
}

// SortedItems returns the items of the map ordered by id.
func (r *RawData) SortedItems() []*Item {
	items := make([]*Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
