package algorithm

import (
	"container/list"
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/streamrec/internal/domain/component"
	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/ranking"
)

// limitParam caps the length of baseline lists; zero returns everything.
type limitParam struct {
	Limit int `json:"limit"`
}

func decodeLimit(def component.Definition) (int, error) {
	var p limitParam
	if err := def.Decode(&p); err != nil {
		return 0, err
	}
	if p.Limit < 0 {
		return 0, fmt.Errorf("%w: limit %d", ErrInvalidParam, p.Limit)
	}
	return p.Limit, nil
}

// MostPopular recommends items by total click count.
type MostPopular struct {
	counts *ranking.Treap
	limit  int
}

// NewMostPopular returns an empty popularity baseline.
func NewMostPopular(limit int) *MostPopular {
	return &MostPopular{counts: ranking.New(), limit: limit}
}

func newMostPopular(def component.Definition) (Recommender, error) {
	limit, err := decodeLimit(def)
	if err != nil {
		return nil, err
	}
	return NewMostPopular(limit), nil
}

// Train implements Recommender.
func (m *MostPopular) Train(_ context.Context, _ []*model.Item, clicks []*model.ClickData) error {
	for _, c := range clicks {
		m.counts.Add(c.Click.ItemID(), 1)
	}
	return nil
}

// Recommend implements Recommender.
func (m *MostPopular) Recommend(context.Context, *model.ClickData) ([]int64, error) {
	return m.counts.IDs(m.limit), nil
}

// DefaultPopularityWindow is the RecentlyPopular sliding window.
const DefaultPopularityWindow = 24 * time.Hour

// RecentlyPopular counts only clicks inside a sliding time window that
// ends at the latest trained click.
type RecentlyPopular struct {
	MostPopular
	window time.Duration
	recent []*model.Click
}

// NewRecentlyPopular returns an empty windowed popularity baseline.
func NewRecentlyPopular(window time.Duration, limit int) *RecentlyPopular {
	if window <= 0 {
		window = DefaultPopularityWindow
	}
	return &RecentlyPopular{MostPopular: *NewMostPopular(limit), window: window}
}

func newRecentlyPopular(def component.Definition) (Recommender, error) {
	var p struct {
		limitParam
		FilterTime int64 `json:"filterTime"` // milliseconds
	}
	if err := def.Decode(&p); err != nil {
		return nil, err
	}
	if p.FilterTime < 0 || p.Limit < 0 {
		return nil, fmt.Errorf("%w: filterTime %d, limit %d", ErrInvalidParam, p.FilterTime, p.Limit)
	}
	return NewRecentlyPopular(time.Duration(p.FilterTime)*time.Millisecond, p.Limit), nil
}

// Train implements Recommender.
func (m *RecentlyPopular) Train(ctx context.Context, items []*model.Item, clicks []*model.ClickData) error {
	if err := m.MostPopular.Train(ctx, items, clicks); err != nil {
		return err
	}
	for _, c := range clicks {
		m.recent = append(m.recent, c.Click)
	}
	if len(m.recent) == 0 {
		return nil
	}
	newest := m.recent[len(m.recent)-1].Timestamp
	drop := 0
	for drop < len(m.recent) && newest.Sub(m.recent[drop].Timestamp) > m.window {
		m.counts.Add(m.recent[drop].ItemID(), -1)
		drop++
	}
	m.recent = append(m.recent[:0], m.recent[drop:]...)
	return nil
}

// recency is a move-to-front list of item ids.
type recency struct {
	order *list.List
	pos   map[int64]*list.Element
	limit int
}

func newRecency(limit int) recency {
	return recency{order: list.New(), pos: make(map[int64]*list.Element), limit: limit}
}

func (r *recency) touch(id int64) {
	if e, ok := r.pos[id]; ok {
		r.order.MoveToFront(e)
		return
	}
	r.pos[id] = r.order.PushFront(id)
}

func (r *recency) ids() []int64 {
	n := r.order.Len()
	if r.limit > 0 && r.limit < n {
		n = r.limit
	}
	out := make([]int64, 0, n)
	for e := r.order.Front(); e != nil && len(out) < n; e = e.Next() {
		out = append(out, e.Value.(int64))
	}
	return out
}

// MostRecent recommends the most recently published items.
type MostRecent struct {
	recency
}

// NewMostRecent returns an empty recency-of-publication baseline.
func NewMostRecent(limit int) *MostRecent {
	return &MostRecent{recency: newRecency(limit)}
}

func newMostRecent(def component.Definition) (Recommender, error) {
	limit, err := decodeLimit(def)
	if err != nil {
		return nil, err
	}
	return NewMostRecent(limit), nil
}

// Train implements Recommender.
func (m *MostRecent) Train(_ context.Context, items []*model.Item, _ []*model.ClickData) error {
	for _, it := range items {
		m.touch(it.ID)
	}
	return nil
}

// Recommend implements Recommender.
func (m *MostRecent) Recommend(context.Context, *model.ClickData) ([]int64, error) {
	return m.ids(), nil
}

// RecentlyClicked recommends the most recently clicked items.
type RecentlyClicked struct {
	recency
}

// NewRecentlyClicked returns an empty recency-of-click baseline.
func NewRecentlyClicked(limit int) *RecentlyClicked {
	return &RecentlyClicked{recency: newRecency(limit)}
}

func newRecentlyClicked(def component.Definition) (Recommender, error) {
	limit, err := decodeLimit(def)
	if err != nil {
		return nil, err
	}
	return NewRecentlyClicked(limit), nil
}

// Train implements Recommender.
func (m *RecentlyClicked) Train(_ context.Context, _ []*model.Item, clicks []*model.ClickData) error {
	for _, c := range clicks {
		m.touch(c.Click.ItemID())
	}
	return nil
}

// Recommend implements Recommender.
func (m *RecentlyClicked) Recommend(context.Context, *model.ClickData) ([]int64, error) {
	return m.ids(), nil
}

// Random recommends a random permutation of the known items.
type Random struct {
	known model.IDSet
	items []int64
	rng   *rand.Rand
	limit int
}

// NewRandom returns a random baseline seeded with seed.
func NewRandom(seed uint64, limit int) *Random {
	return &Random{
		known: make(model.IDSet),
		rng:   rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		limit: limit,
	}
}

func newRandom(def component.Definition) (Recommender, error) {
	var p struct {
		limitParam
		Seed *uint64 `json:"seed"`
	}
	if err := def.Decode(&p); err != nil {
		return nil, err
	}
	if p.Limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidParam, p.Limit)
	}
	seed := uint64(time.Now().UnixNano())
	if p.Seed != nil {
		seed = *p.Seed
	}
	return NewRandom(seed, p.Limit), nil
}

// Train implements Recommender.
func (m *Random) Train(_ context.Context, items []*model.Item, _ []*model.ClickData) error {
	for _, it := range items {
		if m.known.Add(it.ID) {
			m.items = append(m.items, it.ID)
		}
	}
	return nil
}

// Recommend implements Recommender.
func (m *Random) Recommend(context.Context, *model.ClickData) ([]int64, error) {
	out := make([]int64, len(m.items))
	copy(out, m.items)
	m.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if m.limit > 0 && m.limit < len(out) {
		out = out[:m.limit]
	}
	return out, nil
}
