package eventstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/internal/domain/eventstore"
	"github.com/okian/pitwall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	resultCols = []string{"resultId", "raceId", "driverId", "constructorId", "position", "grid", "points", "statusId"}
	raceCols   = []string{"raceId", "year", "round", "circuitId"}
	qualiCols  = []string{"raceId", "driverId", "position"}
)

func races() *source.Table {
	return source.NewTable(source.TableRaces, raceCols,
		[]string{"2", "2010", "2", "6"},
		[]string{"1", "2010", "1", "3"},
		[]string{"3", "2011", "1", "3"},
	)
}

func TestNormalize(t *testing.T) {
	Convey("Given a Store", t, func() {
		ctx := context.Background()
		s := eventstore.New()

		Convey("When results arrive out of chronological order", func() {
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"30", "3", "20", "9", "1", "1", "25", "1"},
				[]string{"20", "2", "20", "9", "2", "3", "18", "1"},
				[]string{"10", "1", "20", "9", `\N`, "5", "0", "11"},
				[]string{"11", "1", "4", "6", "1", "2", "25", "1"},
			)
			events, rep, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then events are sorted by year, round and driver", func() {
				So(err, ShouldBeNil)
				So(rep.Events, ShouldEqual, 4)
				So(events, ShouldHaveLength, 4)
				So(events[0].ResultID, ShouldEqual, "11")
				So(events[1].ResultID, ShouldEqual, "10")
				So(events[2].ResultID, ShouldEqual, "20")
				So(events[3].ResultID, ShouldEqual, "30")
			})

			Convey("Then race attributes are joined onto each event", func() {
				So(events[0].Year, ShouldEqual, 2010)
				So(events[0].Round, ShouldEqual, 1)
				So(events[0].CircuitID, ShouldEqual, "3")
				So(events[2].CircuitID, ShouldEqual, "6")
			})

			Convey("Then the \\N position is MISSING but the event is kept", func() {
				So(model.IsMissing(events[1].Position), ShouldBeTrue)
				So(events[1].StatusID, ShouldEqual, "11")
				So(events[1].Grid, ShouldEqual, 5.0)
				So(rep.Unparsable, ShouldBeEmpty)
			})

			Convey("Then qualifying is MISSING without a qualifying table", func() {
				for _, ev := range events {
					So(model.IsMissing(ev.QualiPosition), ShouldBeTrue)
				}
			})
		})

		Convey("When a numeric value is garbage", func() {
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"1", "1", "20", "9", "first", "1", "25", "1"},
			)
			events, rep, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then it becomes MISSING and is counted", func() {
				So(err, ShouldBeNil)
				So(model.IsMissing(events[0].Position), ShouldBeTrue)
				So(rep.Unparsable["position"], ShouldEqual, 1)
			})
		})

		Convey("When a driver has two results in one race", func() {
			rows := [][]string{
				{"7", "1", "20", "9", "3", "1", "15", "1"},
				{"5", "1", "20", "9", "1", "1", "25", "1"},
				{"6", "1", "4", "6", "2", "2", "18", "1"},
			}
			forward := source.NewTable(source.TableResults, resultCols, rows...)
			backward := source.NewTable(source.TableResults, resultCols, rows[2], rows[1], rows[0])

			a, repA, errA := s.Normalize(ctx, eventstore.Input{Results: forward, Races: races()})
			b, _, errB := s.Normalize(ctx, eventstore.Input{Results: backward, Races: races()})

			Convey("Then the smallest resultId survives regardless of input order", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(repA.Duplicates, ShouldEqual, 1)
				So(a, ShouldHaveLength, 2)
				So(a[1].ResultID, ShouldEqual, "5")
				So(a[1].Position, ShouldEqual, 1.0)
				So(b[1].ResultID, ShouldEqual, a[1].ResultID)
			})
		})

		Convey("When a qualifying table is provided", func() {
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"1", "1", "20", "9", "1", "1", "25", "1"},
				[]string{"2", "1", "4", "6", "2", "2", "18", "1"},
			)
			quali := source.NewTable(source.TableQualifying, qualiCols,
				[]string{"1", "20", "3"},
				[]string{"1", "20", "2"},
				[]string{"1", "4", `\N`},
			)
			events, _, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races(), Qualifying: quali})

			Convey("Then the best qualifying position is attached", func() {
				So(err, ShouldBeNil)
				So(events[0].DriverID, ShouldEqual, "4")
				So(model.IsMissing(events[0].QualiPosition), ShouldBeTrue)
				So(events[1].QualiPosition, ShouldEqual, 2.0)
			})
		})

		Convey("When a required column is absent", func() {
			results := source.NewTable(source.TableResults, []string{"resultId", "raceId", "driverId"},
				[]string{"1", "1", "20"},
			)
			_, _, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then it fails as malformed input", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, eventstore.ErrMalformedInput), ShouldBeTrue)
				var mie *eventstore.MalformedInputError
				So(errors.As(err, &mie), ShouldBeTrue)
				So(mie.Column, ShouldEqual, "constructorId")
				So(mie.Row, ShouldEqual, -1)
			})
		})

		Convey("When a result references an unknown race", func() {
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"1", "99", "20", "9", "1", "1", "25", "1"},
			)
			_, _, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then it fails as malformed input", func() {
				So(errors.Is(err, eventstore.ErrMalformedInput), ShouldBeTrue)
			})
		})

		Convey("When a driver key is empty", func() {
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"1", "1", "", "9", "1", "1", "25", "1"},
			)
			_, _, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then it fails as malformed input at that row", func() {
				var mie *eventstore.MalformedInputError
				So(errors.As(err, &mie), ShouldBeTrue)
				So(mie.Row, ShouldEqual, 0)
				So(mie.Column, ShouldEqual, "driverId")
			})
		})

		Convey("When the races table is missing", func() {
			_, _, err := s.Normalize(ctx, eventstore.Input{Results: source.NewTable(source.TableResults, resultCols)})
			So(errors.Is(err, eventstore.ErrMalformedInput), ShouldBeTrue)
		})

		Convey("When custom NA values are configured", func() {
			s := eventstore.New(eventstore.WithNAValues([]string{"NA"}))
			results := source.NewTable(source.TableResults, resultCols,
				[]string{"1", "1", "20", "9", "NA", "1", "25", "1"},
			)
			events, rep, err := s.Normalize(ctx, eventstore.Input{Results: results, Races: races()})

			Convey("Then they are MISSING without being counted as unparsable", func() {
				So(err, ShouldBeNil)
				So(model.IsMissing(events[0].Position), ShouldBeTrue)
				So(rep.Unparsable, ShouldBeEmpty)
			})
		})
	})
}

func TestCompareIDs(t *testing.T) {
	Convey("Given ids", t, func() {
		So(eventstore.CompareIDs("9", "10"), ShouldBeLessThan, 0)
		So(eventstore.CompareIDs("10", "10"), ShouldEqual, 0)
		So(eventstore.CompareIDs("b", "a"), ShouldBeGreaterThan, 0)
		So(eventstore.CompareIDs("10", "1a"), ShouldBeLessThan, 0)
		So(eventstore.CompareIDs("1a", "2"), ShouldBeGreaterThan, 0)
		So(eventstore.CompareIDs("007", "7"), ShouldBeLessThan, 0)
	})
}

func permutations(ids []string) [][]string {
	if len(ids) <= 1 {
		return [][]string{append([]string(nil), ids...)}
	}
	var out [][]string
	for i := range ids {
		rest := append(append([]string(nil), ids[:i]...), ids[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{ids[i]}, p...))
		}
	}
	return out
}

func TestSortMixedIDs(t *testing.T) {
	Convey("Given drivers of one race with numeric and non-numeric ids", t, func() {
		ids := []string{"2", "10", "1a", "b", "007", "7"}

		Convey("When every input permutation is sorted", func() {
			for _, perm := range permutations(ids) {
				events := make([]model.Event, len(perm))
				for i, id := range perm {
					events[i] = model.Event{RaceID: "1", Year: 2010, Round: 1, DriverID: id}
				}
				eventstore.Sort(events)

				got := make([]string, len(events))
				for i := range events {
					got[i] = events[i].DriverID
				}
				So(got, ShouldResemble, []string{"2", "007", "7", "10", "1a", "b"})
			}
		})
	})
}
