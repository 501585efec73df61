package rolling_test

import (
	"errors"
	"testing"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/internal/domain/timeline"
	. "github.com/smartystreets/goconvey/convey"
)

func win(p *timeline.Point) float64 {
	if p.Events[0].Position == 1 {
		return 1
	}
	return 0
}

func pos(p *timeline.Point) float64 { return p.Events[0].Position }

func one(*timeline.Point) float64 { return 1 }

// history builds a driver timeline from finishing positions.
func history(positions ...float64) *timeline.Timeline {
	tl := &timeline.Timeline{Key: "d"}
	for i, p := range positions {
		tl.Points = append(tl.Points, timeline.Point{
			RaceID: string(rune('a' + i)),
			Year:   2010,
			Round:  i + 1,
			Events: []model.Event{{Position: p}},
		})
	}
	return tl
}

func TestAggregate(t *testing.T) {
	Convey("Given win statistics with the exclusive policy", t, func() {
		stats := []rolling.Stat{
			{Name: "rolling_wins", Kind: rolling.KindSum, Policy: rolling.Exclusive, Value: win},
			{Name: "rolling_win_rate", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: win},
			{Name: "career_starts", Kind: rolling.KindCounter},
		}

		Convey("When a driver has three wins before a fourth race", func() {
			snaps, err := rolling.Aggregate(history(1, 1, 1, 5), 10, stats)

			Convey("Then one snapshot per point is emitted in order", func() {
				So(err, ShouldBeNil)
				So(snaps, ShouldHaveLength, 4)
				So(snaps[0].RaceID, ShouldEqual, "a")
				So(snaps[3].RaceID, ShouldEqual, "d")
			})

			Convey("Then the fourth snapshot counts the three prior wins", func() {
				So(snaps[3].Values[0], ShouldEqual, 3.0)
				So(snaps[3].Values[1], ShouldEqual, 1.0)
			})

			Convey("Then the first snapshot has no history", func() {
				So(model.IsMissing(snaps[0].Values[0]), ShouldBeTrue)
				So(model.IsMissing(snaps[0].Values[1]), ShouldBeTrue)
			})

			Convey("Then the counter is the 1-based position", func() {
				for i, s := range snaps {
					So(s.Values[2], ShouldEqual, float64(i+1))
				}
			})
		})

		Convey("When the window is shorter than the history", func() {
			snaps, err := rolling.Aggregate(history(1, 1, 2, 2, 2), 2, stats)

			Convey("Then only the last w prior points count", func() {
				So(err, ShouldBeNil)
				So(snaps[2].Values[0], ShouldEqual, 2.0)
				So(snaps[3].Values[0], ShouldEqual, 1.0)
				So(snaps[4].Values[0], ShouldEqual, 0.0)
				So(snaps[4].Values[1], ShouldEqual, 0.0)
			})

			Convey("Then the counter ignores the window", func() {
				So(snaps[4].Values[2], ShouldEqual, 5.0)
			})
		})

		Convey("When rates are computed over a long history", func() {
			snaps, err := rolling.Aggregate(history(1, 3, 1, 7, 1, 1, 9, 2, 1, 4, 1, 6), 4, stats)

			Convey("Then every defined rate is in [0,1]", func() {
				So(err, ShouldBeNil)
				for _, s := range snaps[1:] {
					So(s.Values[1], ShouldBeBetweenOrEqual, 0.0, 1.0)
				}
			})
		})
	})

	Convey("Given a mean statistic over a field with gaps", t, func() {
		mean := []rolling.Stat{{Name: "avg_pos", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: pos}}

		Convey("When every prior value is MISSING", func() {
			snaps, err := rolling.Aggregate(history(model.Missing(), model.Missing(), 4), 10, mean)

			Convey("Then the mean is MISSING, not zero", func() {
				So(err, ShouldBeNil)
				So(model.IsMissing(snaps[2].Values[0]), ShouldBeTrue)
			})
		})

		Convey("When some prior values are MISSING", func() {
			snaps, _ := rolling.Aggregate(history(2, model.Missing(), 4, 9), 10, mean)

			Convey("Then the mean skips them", func() {
				So(snaps[3].Values[0], ShouldEqual, 3.0)
			})
		})
	})

	Convey("Given the inclusive policy", t, func() {
		stats := []rolling.Stat{{Name: "avg", Kind: rolling.KindMean, Policy: rolling.Inclusive, Value: pos}}
		snaps, err := rolling.Aggregate(history(2, 4, 6), 2, stats)

		Convey("Then the current point is part of its own window", func() {
			So(err, ShouldBeNil)
			So(snaps[0].Values[0], ShouldEqual, 2.0)
			So(snaps[1].Values[0], ShouldEqual, 3.0)
			So(snaps[2].Values[0], ShouldEqual, 5.0)
		})
	})

	Convey("Given a ratio statistic", t, func() {
		stats := []rolling.Stat{{
			Name: "ratio", Kind: rolling.KindRatio, Policy: rolling.Exclusive, Window: rolling.Unbounded,
			Value: win, Den: one,
		}}
		snaps, err := rolling.Aggregate(history(1, 2, 3, 1), 1, stats)

		Convey("Then the unbounded window divides sums over all prior points", func() {
			So(err, ShouldBeNil)
			So(model.IsMissing(snaps[0].Values[0]), ShouldBeTrue)
			So(snaps[1].Values[0], ShouldEqual, 1.0)
			So(snaps[3].Values[0], ShouldAlmostEqual, 1.0/3.0)
		})

		Convey("When the denominator sums to zero", func() {
			zero := []rolling.Stat{{
				Name: "ratio", Kind: rolling.KindRatio, Policy: rolling.Exclusive,
				Value: win, Den: func(*timeline.Point) float64 { return 0 },
			}}
			snaps, _ := rolling.Aggregate(history(1, 1), 5, zero)

			Convey("Then the ratio is MISSING", func() {
				So(model.IsMissing(snaps[1].Values[0]), ShouldBeTrue)
			})
		})
	})

	Convey("Given an empty timeline", t, func() {
		snaps, err := rolling.Aggregate(&timeline.Timeline{Key: "x"}, 10, []rolling.Stat{{Name: "c", Kind: rolling.KindCounter}})

		Convey("Then no snapshots are produced", func() {
			So(err, ShouldBeNil)
			So(snaps, ShouldBeEmpty)
		})
	})

	Convey("Given invalid declarations", t, func() {
		tl := history(1)
		cases := map[string][]rolling.Stat{
			"no name":      {{Kind: rolling.KindSum, Value: win}},
			"no extractor": {{Name: "a", Kind: rolling.KindMean}},
			"no den":       {{Name: "a", Kind: rolling.KindRatio, Value: win}},
			"duplicate":    {{Name: "a", Kind: rolling.KindCounter}, {Name: "a", Kind: rolling.KindCounter}},
			"bad window":   {{Name: "a", Kind: rolling.KindSum, Value: win, Window: -2}},
			"bad kind":     {{Name: "a", Kind: rolling.Kind(42), Value: win}},
		}
		for _, stats := range cases {
			_, err := rolling.Aggregate(tl, 10, stats)
			So(errors.Is(err, rolling.ErrInvalidStat), ShouldBeTrue)
		}

		Convey("When the window size is not positive", func() {
			_, err := rolling.Aggregate(tl, 0, nil)
			So(errors.Is(err, rolling.ErrInvalidWindow), ShouldBeTrue)
		})
	})
}

func TestKindPolicyString(t *testing.T) {
	Convey("Given kinds and policies", t, func() {
		So(rolling.KindRatio.String(), ShouldEqual, "ratio")
		So(rolling.Inclusive.String(), ShouldEqual, "inclusive")
		So(rolling.Kind(9).String(), ShouldEqual, "kind(9)")
	})
}
