package algorithm

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/streamrec/internal/domain/component"
	"github.com/okian/streamrec/internal/domain/model"
)

// recordingRecommender remembers every call it receives.
type recordingRecommender struct {
	trains   [][]*model.ClickData
	items    [][]*model.Item
	lastData *model.ClickData
}

func (r *recordingRecommender) Train(_ context.Context, items []*model.Item, clicks []*model.ClickData) error {
	r.items = append(r.items, items)
	r.trains = append(r.trains, clicks)
	return nil
}

func (r *recordingRecommender) Recommend(_ context.Context, data *model.ClickData) ([]int64, error) {
	r.lastData = data
	return nil, nil
}

var t0 = time.Date(2016, 2, 1, 8, 0, 0, 0, time.UTC)

func clickAt(minutes float64, itemID int64) *model.ClickData {
	return &model.ClickData{Click: &model.Click{
		Item:      &model.Item{ID: itemID},
		UserID:    1,
		Timestamp: t0.Add(time.Duration(minutes * float64(time.Minute))),
	}}
}

func TestTrainingInterval(t *testing.T) {
	ctx := context.Background()

	Convey("Given an algorithm with a 10 minute training interval", t, func() {
		rec := &recordingRecommender{}
		alg := New("buffered", rec, WithTrainingInterval(10))

		Convey("When clicks arrive at 0, 4, 9.9 and 10 minutes", func() {
			for _, m := range []float64{0, 4, 9.9} {
				So(alg.Train(ctx, nil, []*model.ClickData{clickAt(m, 1)}), ShouldBeNil)
			}

			Convey("Then nothing is forwarded before the span reaches 10 minutes", func() {
				So(rec.trains, ShouldBeEmpty)
				_, pending := alg.Pending()
				So(pending, ShouldEqual, 3)
			})

			So(alg.Train(ctx, []*model.Item{{ID: 5}}, []*model.ClickData{clickAt(10, 2)}), ShouldBeNil)

			Convey("Then the whole buffer is flushed once", func() {
				So(rec.trains, ShouldHaveLength, 1)
				So(rec.trains[0], ShouldHaveLength, 4)
				So(rec.items[0], ShouldHaveLength, 1)
				items, clicks := alg.Pending()
				So(items+clicks, ShouldEqual, 0)
			})

			Convey("Then the watermark moves to the last flushed click", func() {
				So(alg.Train(ctx, nil, []*model.ClickData{clickAt(19, 3)}), ShouldBeNil)
				So(rec.trains, ShouldHaveLength, 1)
				So(alg.Train(ctx, nil, []*model.ClickData{clickAt(20, 3)}), ShouldBeNil)
				So(rec.trains, ShouldHaveLength, 2)
			})
		})

		Convey("Then items alone are buffered without a flush", func() {
			So(alg.Train(ctx, []*model.Item{{ID: 1}}, nil), ShouldBeNil)
			So(rec.items, ShouldBeEmpty)
			items, _ := alg.Pending()
			So(items, ShouldEqual, 1)
		})
	})

	Convey("Given an algorithm without an interval", t, func() {
		rec := &recordingRecommender{}
		alg := New("direct", rec)

		Convey("Then every call is forwarded", func() {
			So(alg.Train(ctx, nil, []*model.ClickData{clickAt(0, 1)}), ShouldBeNil)
			So(alg.Train(ctx, []*model.Item{{ID: 3}}, nil), ShouldBeNil)
			So(rec.trains, ShouldHaveLength, 2)
			So(alg.Name(), ShouldEqual, "direct")
			So(alg.Recommender(), ShouldEqual, rec)
		})
	})
}

func TestWholeUserHistory(t *testing.T) {
	Convey("Given click data with a short session and a longer history", t, func() {
		a, b := clickAt(0, 1).Click, clickAt(1, 2).Click
		data := &model.ClickData{Click: b, Session: model.Session{b}, History: model.Session{a, b}}

		Convey("When whole-history mode is on", func() {
			rec := &recordingRecommender{}
			_, err := New("hist", rec, WithWholeUserHistory(true)).Recommend(context.Background(), data)

			Convey("Then the history replaces the session", func() {
				So(err, ShouldBeNil)
				So(rec.lastData.Session, ShouldResemble, data.History)
				So(rec.lastData.Click, ShouldEqual, b)
				So(data.Session, ShouldHaveLength, 1)
			})
		})

		Convey("When it is off the data passes through", func() {
			rec := &recordingRecommender{}
			_, _ = New("plain", rec).Recommend(context.Background(), data)
			So(rec.lastData, ShouldEqual, data)
		})
	})
}

func TestBaselines(t *testing.T) {
	ctx := context.Background()
	clicks := []*model.ClickData{clickAt(0, 1), clickAt(1, 2), clickAt(2, 2), clickAt(3, 3), clickAt(4, 1), clickAt(5, 2)}

	Convey("MostPopular orders by click count", t, func() {
		m := NewMostPopular(0)
		So(m.Train(ctx, nil, clicks), ShouldBeNil)
		recs, err := m.Recommend(ctx, nil)
		So(err, ShouldBeNil)
		So(recs, ShouldResemble, []int64{2, 1, 3})

		Convey("And the limit truncates", func() {
			m.limit = 1
			recs, _ := m.Recommend(ctx, nil)
			So(recs, ShouldResemble, []int64{2})
		})
	})

	Convey("RecentlyPopular forgets clicks outside the window", t, func() {
		m := NewRecentlyPopular(2*time.Minute, 0)
		So(m.Train(ctx, nil, clicks[:3]), ShouldBeNil)
		recs, _ := m.Recommend(ctx, nil)
		So(recs, ShouldResemble, []int64{2, 1})

		So(m.Train(ctx, nil, clicks[3:]), ShouldBeNil)
		recs, _ = m.Recommend(ctx, nil)
		// window [3, 5]: items 3, 1, 2 once each
		So(recs, ShouldResemble, []int64{1, 2, 3})
		So(m.recent, ShouldHaveLength, 3)
	})

	Convey("MostRecent moves republished items to the front", t, func() {
		m := NewMostRecent(0)
		So(m.Train(ctx, []*model.Item{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 1}}, nil), ShouldBeNil)
		recs, _ := m.Recommend(ctx, nil)
		So(recs, ShouldResemble, []int64{1, 3, 2})
	})

	Convey("RecentlyClicked orders by latest click", t, func() {
		m := NewRecentlyClicked(2)
		So(m.Train(ctx, nil, clicks), ShouldBeNil)
		recs, _ := m.Recommend(ctx, nil)
		So(recs, ShouldResemble, []int64{2, 1})
	})

	Convey("Random permutes known items reproducibly", t, func() {
		items := []*model.Item{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 2}}
		a, b := NewRandom(7, 0), NewRandom(7, 0)
		So(a.Train(ctx, items, nil), ShouldBeNil)
		So(b.Train(ctx, items, nil), ShouldBeNil)
		ra, _ := a.Recommend(ctx, nil)
		rb, _ := b.Recommend(ctx, nil)
		So(ra, ShouldResemble, rb)
		So(ra, ShouldHaveLength, 4)
		So(model.NewIDSet(ra...).Sorted(), ShouldResemble, []int64{1, 2, 3, 4})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given algorithm definitions", t, func() {
		defs, err := component.Parse([]byte(`[
			{"algorithm": ".MostPopular", "name": "pop", "trainingInterval": 5},
			{"algorithm": "RecentlyPopular", "name": "recent-pop", "filterTime": 3600000},
			{"algorithm": "Random", "seed": 1, "wholeUserHistory": true}
		]`), "algorithm")
		So(err, ShouldBeNil)
		reg := NewRegistry()

		Convey("When building them", func() {
			algs, err := reg.Build(defs)

			Convey("Then wrapper settings and parameters are applied", func() {
				So(err, ShouldBeNil)
				So(algs, ShouldHaveLength, 3)
				So(algs[0].Name(), ShouldEqual, "pop")
				So(algs[0].interval, ShouldEqual, 5)
				So(algs[1].Recommender().(*RecentlyPopular).window, ShouldEqual, time.Hour)
				So(algs[2].Name(), ShouldEqual, "Random")
				So(algs[2].wholeHistory, ShouldBeTrue)
			})
		})

		Convey("Then duplicate names are rejected", func() {
			dup := append(defs, defs[0])
			_, err := reg.Build(dup)
			So(errors.Is(err, ErrDuplicateName), ShouldBeTrue)
			So(errors.Is(CheckNames(dup), ErrDuplicateName), ShouldBeTrue)
		})

		Convey("Then unknown tags are rejected", func() {
			_, err := reg.Build([]component.Definition{{Type: "BPR", Name: "bpr", Raw: []byte(`{}`)}})
			So(errors.Is(err, component.ErrUnknownType), ShouldBeTrue)
		})

		Convey("Then negative limits are rejected", func() {
			_, err := reg.Build([]component.Definition{{Type: "MostRecent", Name: "mr", Raw: []byte(`{"limit":-1}`)}})
			So(errors.Is(err, ErrInvalidParam), ShouldBeTrue)
		})

		Convey("Then the baselines are registered", func() {
			So(reg.Types(), ShouldResemble, []string{"MostPopular", "MostRecent", "Random", "RecentlyClicked", "RecentlyPopular"})
		})
	})
}
