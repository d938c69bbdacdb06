package split_test

import (
	"testing"
	"time"

	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/split"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSplitter(t *testing.T) {
	base := time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	Convey("Given items and clicks out of order", t, func() {
		i1 := &model.Item{ID: 1, CreatedAt: at(0)}
		i2 := &model.Item{ID: 2, CreatedAt: at(50)}
		clicks := []*model.Click{
			{Item: i1, UserID: 1, Timestamp: at(90)},
			{Item: i1, UserID: 2, Timestamp: at(10)},
			{Item: i2, UserID: 1, Timestamp: at(100)},
			{Item: i1, UserID: 3, Timestamp: at(20)},
		}
		raw := &model.RawData{Items: map[int64]*model.Item{1: i1, 2: i2}, Clicks: clicks}

		Convey("When merging", func() {
			events := split.Merge(raw)

			Convey("Then the stream is sorted by time", func() {
				So(events, ShouldHaveLength, 6)
				for i := 1; i < len(events); i++ {
					So(events[i].EventTime().Before(events[i-1].EventTime()), ShouldBeFalse)
				}
				So(events[0], ShouldEqual, i1)
			})
		})

		Convey("When splitting by event count at 0.5", func() {
			s, err := split.New(split.WithThreshold(0.5))
			So(err, ShouldBeNil)
			out := s.Split(raw)

			Convey("Then half of the events go to training", func() {
				So(out.Training, ShouldHaveLength, 3)
				So(out.Test, ShouldHaveLength, 3)
				So(out.Test[0].EventTime(), ShouldEqual, at(50))
			})
		})

		Convey("When splitting by time at 0.5", func() {
			s, err := split.New(split.WithMode(split.ByTime), split.WithThreshold(0.5))
			So(err, ShouldBeNil)
			out := s.Split(raw)

			Convey("Then events strictly before minute 50 are training", func() {
				So(out.Training, ShouldHaveLength, 3)
				So(out.Test[0], ShouldEqual, i2)
			})
		})

		Convey("When the threshold is out of range", func() {
			_, err := split.New(split.WithThreshold(1.5))
			So(err, ShouldEqual, split.ErrInvalidThreshold)
		})
	})

	Convey("Given an empty dataset", t, func() {
		s, _ := split.New()
		out := s.Split(&model.RawData{})
		So(out.Training, ShouldBeEmpty)
		So(out.Test, ShouldBeEmpty)
	})
}
