// Package dedupe detects repeated clicks of the same user on the same item
// within a short time window.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
)

// DefaultWindow is the repeat interval below which a click is a duplicate.
const DefaultWindow = time.Minute

// Deduper records kept clicks and reports repeats.
type Deduper interface {
	// SeenAndRecord reports whether the same user clicked the same item
	// less than the window before c among the kept clicks. A click that is
	// not a duplicate is kept. Clicks must arrive in time order.
	SeenAndRecord(ctx context.Context, c *model.Click) bool
	// Size returns the number of clicks still inside the window.
	Size() int64
}

type key struct {
	user int64
	item int64
}

// node is one kept click in the time-ordered list.
type node struct {
	key  key
	ts   time.Time
	next *node
}

func (n *node) reset() {
	n.key = key{}
	n.ts = time.Time{}
	n.next = nil
}

// inMemoryDeduper keeps the kept clicks of the last window in a singly
// linked list, oldest at head, and the latest kept click per (user, item).
// Nodes are recycled through a sync.Pool.
type inMemoryDeduper struct {
	mu       sync.Mutex
	window   time.Duration
	maxSize  int // 0 or negative = bounded only by the window
	latest   map[key]*node
	head     *node
	tail     *node
	size     atomic.Int64
	nodePool sync.Pool
}

// NewClickDeduper creates a deduper with configuration options.
func NewClickDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		window: DefaultWindow,
		latest: make(map[key]*node),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, c *model.Click) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.expire(c.Timestamp)

	k := key{user: c.UserID, item: c.ItemID()}
	if prev, ok := d.latest[k]; ok && c.Timestamp.Sub(prev.ts) < d.window {
		return true
	}

	if d.maxSize > 0 && int(d.size.Load()) >= d.maxSize {
		d.evictHead()
	}

	n := d.nodePool.Get().(*node)
	n.key = k
	n.ts = c.Timestamp
	if d.tail == nil {
		d.head = n
	} else {
		d.tail.next = n
	}
	d.tail = n
	d.latest[k] = n
	d.size.Add(1)
	return false
}

// expire drops kept clicks that can no longer cause a duplicate at now.
// Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	for d.head != nil && now.Sub(d.head.ts) >= d.window {
		d.evictHead()
	}
}

// evictHead removes the oldest kept click. Must be called with d.mu held.
func (d *inMemoryDeduper) evictHead() {
	n := d.head
	if n == nil {
		return
	}
	d.head = n.next
	if d.head == nil {
		d.tail = nil
	}
	if d.latest[n.key] == n {
		delete(d.latest, n.key)
	}
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// Size implements Deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Filter returns the clicks that are not duplicates, in order, and the
// number removed.
func Filter(ctx context.Context, d Deduper, clicks []*model.Click) ([]*model.Click, int) {
	kept := make([]*model.Click, 0, len(clicks))
	for _, c := range clicks {
		if d.SeenAndRecord(ctx, c) {
			continue
		}
		kept = append(kept, c)
	}
	return kept, len(clicks) - len(kept)
}
