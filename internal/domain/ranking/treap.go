// Package ranking keeps items ordered by a mutable integer count.
package ranking

// Treap-based popularity index.
//
// Ordering: count DESC, then item id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the ranking
// from most to least popular. Subtree sizes make Rank O(log n).
//
// A Treap is owned by a single algorithm instance and is not synchronized.

// Entry is one ranked item.
type Entry struct {
	Rank  int // 1-based position
	ID    int64
	Count int64
}

type node struct {
	id    int64
	count int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aCount, aID) ranks before (bCount, bID).
func less(aCount int64, aID int64, bCount int64, bID int64) bool {
	if aCount != bCount {
		return aCount > bCount
	}
	return aID < bID
}

// priority derives a well-mixed heap priority from the id (splitmix64), so
// the tree shape is independent of insertion order and reproducible.
func priority(id int64) uint64 {
	z := uint64(id) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id int64, count int64) *node {
	if n == nil {
		return &node{id: id, count: count, prio: priority(id), size: 1}
	}
	if less(count, id, n.count, n.id) {
		n.left = insert(n.left, id, count)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, count)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id int64, count int64) *node {
	if n == nil {
		return nil
	}
	if count == n.count && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, count)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, count)
		}
	} else if less(count, id, n.count, n.id) {
		n.left = deleteNode(n.left, id, count)
	} else {
		n.right = deleteNode(n.right, id, count)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Rank: len(*out) + 1, ID: n.id, Count: n.count})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// Treap ranks item ids by count.
type Treap struct {
	root   *node
	counts map[int64]int64
}

// New returns an empty ranking.
func New() *Treap {
	return &Treap{counts: make(map[int64]int64)}
}

// Add changes the count of id by delta and returns the new count. An id
// whose count drops to zero or below leaves the ranking.
func (t *Treap) Add(id int64, delta int64) int64 {
	old, ok := t.counts[id]
	if ok {
		if delta == 0 {
			return old
		}
		t.root = deleteNode(t.root, id, old)
	}
	next := old + delta
	if next <= 0 {
		delete(t.counts, id)
		return 0
	}
	t.counts[id] = next
	t.root = insert(t.root, id, next)
	return next
}

// Count returns the count of id, zero when absent.
func (t *Treap) Count(id int64) int64 {
	return t.counts[id]
}

// Len returns the number of ranked ids.
func (t *Treap) Len() int {
	return len(t.counts)
}

// TopN returns the n highest-ranked entries.
func (t *Treap) TopN(n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	out := make([]Entry, 0, min(n, t.Len()))
	collectTopN(t.root, n, &out)
	return out, nil
}

// IDs returns the ids of the n highest-ranked entries. n < 1 yields all.
func (t *Treap) IDs(n int) []int64 {
	if n < 1 || n > t.Len() {
		n = t.Len()
	}
	if n == 0 {
		return nil
	}
	entries, _ := t.TopN(n)
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Rank returns the entry for id in O(log n).
func (t *Treap) Rank(id int64) (Entry, error) {
	count, ok := t.counts[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	rank := 1
	n := t.root
	for n != nil {
		switch {
		case n.id == id:
			return Entry{Rank: rank + nsize(n.left), ID: id, Count: count}, nil
		case less(count, id, n.count, n.id):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return Entry{}, ErrNotFound
}
