package metric

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/streamrec/internal/domain/component"
	"github.com/okian/streamrec/internal/domain/model"
)

func mustPR(kind Kind, k int) *PrecisionOrRecall {
	m, err := NewPrecisionOrRecall(string(kind), "alg", kind, k)
	if err != nil {
		panic(err)
	}
	return m
}

func TestPrecisionAndRecall(t *testing.T) {
	Convey("Given k=3 and recommendations [7,2,9] against ground truth {2,9,4}", t, func() {
		recs := []int64{7, 2, 9}
		gt := model.NewIDSet(2, 9, 4)
		p, r := mustPR(Precision, 3), mustPR(Recall, 3)
		f1, mf1 := NewF1("F1", "alg", 3), NewMeanF1("MeanF1", "alg", 3)

		for _, m := range []Metric{p, r, f1, mf1} {
			So(m.Evaluate(nil, recs, gt), ShouldBeNil)
		}

		Convey("Then precision, recall and both F1 variants are 2/3", func() {
			So(p.Result(), ShouldAlmostEqual, 2.0/3, 1e-12)
			So(r.Result(), ShouldAlmostEqual, 2.0/3, 1e-12)
			So(f1.Result(), ShouldAlmostEqual, 2.0/3, 1e-12)
			So(mf1.Result(), ShouldAlmostEqual, 2.0/3, 1e-12)
			So(mf1.Detailed(), ShouldHaveLength, 1)
		})
	})

	Convey("Given a precision metric", t, func() {
		p := mustPR(Precision, 10)

		Convey("Then empty ground truth is skipped", func() {
			So(p.Evaluate(nil, []int64{1}, model.NewIDSet()), ShouldBeNil)
			So(p.Detailed(), ShouldBeEmpty)
			So(math.IsNaN(p.Result()), ShouldBeTrue)
		})

		Convey("Then an empty list scores zero", func() {
			So(p.Evaluate(nil, nil, model.NewIDSet(1)), ShouldBeNil)
			So(p.Detailed(), ShouldResemble, []float64{0})
		})

		Convey("Then a short list divides by its own length", func() {
			So(p.Evaluate(nil, []int64{1, 2}, model.NewIDSet(1)), ShouldBeNil)
			So(p.Result(), ShouldEqual, 0.5)
		})

		Convey("Then duplicates in the top k fail", func() {
			err := p.Evaluate(nil, []int64{1, 1}, model.NewIDSet(1))
			So(errors.Is(err, ErrDuplicateRecommendation), ShouldBeTrue)
		})

		Convey("Then duplicates beyond k are ignored", func() {
			short := mustPR(Precision, 2)
			So(short.Evaluate(nil, []int64{1, 2, 2}, model.NewIDSet(1)), ShouldBeNil)
		})
	})

	Convey("An unknown kind is rejected", t, func() {
		_, err := NewPrecisionOrRecall("x", "alg", "Accuracy", 3)
		So(errors.Is(err, ErrInvalidType), ShouldBeTrue)
	})
}

func TestMeanF1(t *testing.T) {
	Convey("Given two samples with different P/R balance", t, func() {
		m := NewMeanF1("MeanF1", "alg", 2)
		So(m.Evaluate(nil, []int64{1, 2}, model.NewIDSet(1)), ShouldBeNil)    // P=.5 R=1
		So(m.Evaluate(nil, []int64{3, 4}, model.NewIDSet(5, 6)), ShouldBeNil) // P=0 R=0

		Convey("Then samples are averaged after the harmonic mean", func() {
			So(m.Detailed()[0], ShouldAlmostEqual, 2.0/3, 1e-12)
			So(m.Detailed()[1], ShouldEqual, 0)
			So(m.Result(), ShouldAlmostEqual, 1.0/3, 1e-12)
		})

		Convey("Then macro F1 uses the averaged P and R", func() {
			f := NewF1("F1", "alg", 2)
			So(f.Evaluate(nil, []int64{1, 2}, model.NewIDSet(1)), ShouldBeNil)
			So(f.Evaluate(nil, []int64{3, 4}, model.NewIDSet(5, 6)), ShouldBeNil)
			So(f.Result(), ShouldAlmostEqual, 2*0.25*0.5/0.75, 1e-12)
		})
	})
}

func TestMRR(t *testing.T) {
	Convey("Given an MRR metric with k=3", t, func() {
		m := NewMRR("MRR", "alg", 3)

		Convey("Then the first hit position counts", func() {
			So(m.Evaluate(nil, []int64{8, 4, 2}, model.NewIDSet(2, 4)), ShouldBeNil)
			So(m.Result(), ShouldEqual, 0.5)
		})

		Convey("Then a hit beyond k scores zero", func() {
			So(m.Evaluate(nil, []int64{8, 7, 6, 2}, model.NewIDSet(2)), ShouldBeNil)
			So(m.Detailed(), ShouldResemble, []float64{0})
		})

		Convey("Then empty ground truth is skipped", func() {
			So(m.Evaluate(nil, []int64{1}, nil), ShouldBeNil)
			So(m.Detailed(), ShouldBeEmpty)
		})
	})
}

func TestCatalogMetrics(t *testing.T) {
	Convey("Given coverage and distinct-item metrics with k=4", t, func() {
		c := NewCoverage("Coverage", "alg", 4)
		n := NewNbRecItems("NbRecItems", "alg", 4)
		for _, recs := range [][]int64{{1, 2}, {1, 2, 3, 4, 5, 6}} {
			So(c.Evaluate(nil, recs, nil), ShouldBeNil)
			So(n.Evaluate(nil, recs, nil), ShouldBeNil)
		}

		Convey("Then coverage averages the truncated lengths over k", func() {
			So(c.Result(), ShouldEqual, (2.0+4.0)/2/4)
		})

		Convey("Then only the top k ids are counted", func() {
			So(n.Result(), ShouldEqual, 4)
		})
	})
}

func TestRuntime(t *testing.T) {
	Convey("Given runtime metrics", t, func() {
		Convey("Then the value is converted to the resolution", func() {
			m, err := NewRuntime("T", "alg", Testing, Seconds)
			So(err, ShouldBeNil)
			So(m.Evaluate(nil, nil, nil), ShouldBeNil)
			m.SetRuntime(1500)
			So(m.Result(), ShouldEqual, 1.5)

			h, _ := NewRuntime("H", "alg", Training, Hours)
			h.SetRuntime(5_400_000)
			So(h.Result(), ShouldEqual, 1.5)
			So(h.Phase(), ShouldEqual, Training)
		})

		Convey("Then milliseconds is the default", func() {
			m, err := NewRuntime("T", "alg", InBetweenTraining, "")
			So(err, ShouldBeNil)
			m.SetRuntime(12)
			So(m.Result(), ShouldEqual, 12)
		})

		Convey("Then unknown phases and resolutions fail", func() {
			_, err := NewRuntime("T", "alg", "Idle", Seconds)
			So(errors.Is(err, ErrInvalidType), ShouldBeTrue)
			_, err = NewRuntime("T", "alg", Testing, "Days")
			So(errors.Is(err, ErrInvalidType), ShouldBeTrue)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given metric definitions", t, func() {
		defs, err := component.Parse([]byte(`[
			{"metric": ".PrecisionOrRecall", "name": "P@5", "type": "Precision", "k": 5},
			{"metric": "Recall"},
			{"metric": "MRR", "name": "MRR@3", "k": 3},
			{"metric": "Runtime", "name": "Test time", "type": "Testing", "resolution": "Seconds"}
		]`), "metric")
		So(err, ShouldBeNil)
		reg := NewRegistry()

		Convey("When building them for an algorithm", func() {
			ms, err := reg.Build(defs, "pop")

			Convey("Then every metric is bound to the algorithm", func() {
				So(err, ShouldBeNil)
				So(ms, ShouldHaveLength, 4)
				So(ms[0].Name(), ShouldEqual, "P@5")
				So(ms[0].(*PrecisionOrRecall).K(), ShouldEqual, 5)
				So(ms[1].(*PrecisionOrRecall).K(), ShouldEqual, DefaultK)
				So(ms[1].Name(), ShouldEqual, "Recall")
				So(ms[3].(*Runtime).Phase(), ShouldEqual, Testing)
				for _, m := range ms {
					So(m.Algorithm(), ShouldEqual, "pop")
				}
			})

			Convey("Then each build yields fresh instances", func() {
				again, _ := reg.Build(defs, "pop")
				So(again[0], ShouldNotPointTo, ms[0])
			})
		})

		Convey("Then unknown tags are rejected", func() {
			bad := []component.Definition{{Type: "NDCG", Name: "NDCG", Raw: []byte(`{}`)}}
			So(errors.Is(reg.Validate(bad), component.ErrUnknownType), ShouldBeTrue)
		})

		Convey("Then an invalid precision type is rejected", func() {
			bad := []component.Definition{{Type: "PrecisionOrRecall", Name: "x", Raw: []byte(`{"type":"Both"}`)}}
			So(errors.Is(reg.Validate(bad), ErrInvalidType), ShouldBeTrue)
		})

		Convey("Then the built-in tags are listed", func() {
			So(reg.Types(), ShouldContain, "MeanF1")
			So(reg.Types(), ShouldContain, "NbRecItems")
		})
	})
}
