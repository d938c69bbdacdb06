package workpackage_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/session"
	"github.com/okian/streamrec/internal/domain/workpackage"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2017, 3, 1, 10, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func TestBuilder(t *testing.T) {
	rule := session.Rule{Inactivity: true, Threshold: 20 * time.Minute}
	items := map[int64]*model.Item{}
	item := func(id int64) *model.Item {
		if it, ok := items[id]; ok {
			return it
		}
		it := &model.Item{ID: id, CreatedAt: base}
		items[id] = it
		return it
	}

	Convey("Given a user with clicks at 0, 5, 10 and 40 minutes", t, func() {
		c0 := &model.Click{Item: item(1), UserID: 1, Timestamp: at(0)}
		c5 := &model.Click{Item: item(2), UserID: 1, Timestamp: at(5)}
		c10 := &model.Click{Item: item(3), UserID: 1, Timestamp: at(10)}
		c40 := &model.Click{Item: item(4), UserID: 1, Timestamp: at(40)}
		announce := &model.Item{ID: 99, CreatedAt: at(7)}
		events := []model.Event{c0, c5, announce, c10, c40}
		oracle := session.NewOracleTracker(rule, []*model.Click{c0, c5, c10, c40})

		b := workpackage.New(rule)
		wps := b.Build(context.Background(), events, oracle)

		Convey("Then one package is emitted per event, in order", func() {
			So(wps, ShouldHaveLength, 5)
			So(wps[2], ShouldResemble, model.Announcement{Item: announce})
		})

		Convey("Then ground truth holds the rest of the complete session", func() {
			first := wps[0].(model.Evaluation)
			So(first.GroundTruth.Sorted(), ShouldResemble, []int64{2, 3})

			second := wps[1].(model.Evaluation)
			So(second.GroundTruth.Sorted(), ShouldResemble, []int64{3})
			So(second.GroundTruth.Has(1), ShouldBeFalse)
		})

		Convey("Then the last click of a session has empty ground truth", func() {
			So(wps[3].(model.Evaluation).GroundTruth.Len(), ShouldEqual, 0)
			So(wps[4].(model.Evaluation).GroundTruth.Len(), ShouldEqual, 0)
		})

		Convey("Then ground truth never overlaps the session so far", func() {
			for _, wp := range wps {
				if ev, ok := wp.(model.Evaluation); ok {
					for id := range ev.GroundTruth {
						So(ev.Data.Session.ItemIDs().Has(id), ShouldBeFalse)
					}
				}
			}
		})

		Convey("Then snapshots never contain clicks from the future", func() {
			for _, wp := range wps {
				if ev, ok := wp.(model.Evaluation); ok {
					for _, c := range ev.Data.Session {
						So(c.Timestamp.After(ev.Data.Click.Timestamp), ShouldBeFalse)
					}
					for _, c := range ev.Data.History {
						So(c.Timestamp.After(ev.Data.Click.Timestamp), ShouldBeFalse)
					}
				}
			}
		})

		Convey("Then sessions and history are frozen snapshots", func() {
			second := wps[1].(model.Evaluation)
			So(second.Data.Session, ShouldResemble, model.Session{c0, c5})
			last := wps[4].(model.Evaluation)
			So(last.Data.Session, ShouldResemble, model.Session{c40})
			So(last.Data.History, ShouldResemble, model.Session{c0, c5, c10, c40})
		})
	})

	Convey("Given training clicks processed before the test phase", t, func() {
		train := &model.Click{Item: item(1), UserID: 7, Timestamp: at(0)}
		test := &model.Click{Item: item(2), UserID: 7, Timestamp: at(3)}
		b := workpackage.New(rule)
		cds := b.TrainingClicks([]*model.Click{train})
		wps := b.Build(context.Background(), []model.Event{test}, session.NewOracleTracker(rule, []*model.Click{test}))

		Convey("Then the training click is wrapped causally", func() {
			So(cds, ShouldHaveLength, 1)
			So(cds[0].Session, ShouldResemble, model.Session{train})
		})

		Convey("Then test sessions continue across the split", func() {
			ev := wps[0].(model.Evaluation)
			So(ev.Data.Session, ShouldResemble, model.Session{train, test})
			So(ev.Data.History, ShouldHaveLength, 2)
		})
	})
}
