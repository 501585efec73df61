package timeline_test

import (
	"testing"

	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
	. "github.com/smartystreets/goconvey/convey"
)

func ev(race, driver, constructor, circuit string, year, round int) model.Event {
	return model.Event{
		RaceID: race, DriverID: driver, ConstructorID: constructor, CircuitID: circuit,
		Year: year, Round: round, Position: 1,
	}
}

func TestIndex(t *testing.T) {
	Convey("Given events out of chronological order", t, func() {
		events := []model.Event{
			ev("3", "1", "10", "A", 2011, 1),
			ev("1", "1", "10", "A", 2010, 1),
			ev("1", "2", "10", "A", 2010, 1),
			ev("2", "1", "20", "B", 2010, 2),
			ev("2", "2", "10", "B", 2010, 2),
		}

		Convey("When indexed by driver", func() {
			tls, keys := timeline.Index(events, timeline.Driver, false)

			Convey("Then each driver has one point per race in (year, round) order", func() {
				So(keys, ShouldResemble, []string{"1", "2"})
				d1 := tls["1"]
				So(d1.Len(), ShouldEqual, 3)
				So(d1.Points[0].RaceID, ShouldEqual, "1")
				So(d1.Points[1].RaceID, ShouldEqual, "2")
				So(d1.Points[2].RaceID, ShouldEqual, "3")
				for _, p := range d1.Points {
					So(p.Events, ShouldHaveLength, 1)
				}
			})
		})

		Convey("When indexed by constructor with collapse", func() {
			tls, _ := timeline.Index(events, timeline.Constructor, true)

			Convey("Then both cars in one race share a point", func() {
				c10 := tls["10"]
				So(c10.Len(), ShouldEqual, 3)
				So(c10.Points[0].RaceID, ShouldEqual, "1")
				So(c10.Points[0].Events, ShouldHaveLength, 2)
				So(c10.Points[1].Events, ShouldHaveLength, 1)
				So(tls["20"].Len(), ShouldEqual, 1)
			})
		})

		Convey("When indexed by driver and circuit", func() {
			tls, keys := timeline.Index(events, timeline.DriverCircuit, false)

			Convey("Then each pair has its own history", func() {
				So(keys, ShouldHaveLength, 4)
				So(tls[dedupe.Key("1", "A")].Len(), ShouldEqual, 2)
				So(tls[dedupe.Key("1", "B")].Len(), ShouldEqual, 1)
			})
		})

		Convey("When the input order is reversed", func() {
			rev := make([]model.Event, len(events))
			for i := range events {
				rev[len(events)-1-i] = events[i]
			}
			a, _ := timeline.Index(events, timeline.Driver, false)
			b, _ := timeline.Index(rev, timeline.Driver, false)

			Convey("Then the timelines are the same", func() {
				So(b["1"].Points, ShouldResemble, a["1"].Points)
			})
		})

		Convey("When an event has an empty key", func() {
			tls, keys := timeline.Index([]model.Event{ev("1", "", "10", "A", 2010, 1)}, timeline.Driver, false)

			Convey("Then it is skipped", func() {
				So(tls, ShouldBeEmpty)
				So(keys, ShouldBeEmpty)
			})
		})
	})
}
