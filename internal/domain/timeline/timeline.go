// Package timeline groups events per entity and orders each group
// chronologically.
package timeline

import (
	"sort"

	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/model"
)

// KeyFunc extracts the entity key of an event. An empty key skips the event.
type KeyFunc func(*model.Event) string

// Point is one race in an entity's history. Driver-grain dimensions carry
// exactly one event per point; collapsed dimensions carry every event the
// entity had in the race.
type Point struct {
	RaceID string
	Year   int
	Round  int
	Events []model.Event
}

// Timeline is one entity's chronologically ordered history.
type Timeline struct {
	Key    string
	Points []Point
}

// Len returns the number of points.
func (t *Timeline) Len() int { return len(t.Points) }

// Index groups events by key and stable-sorts each group by (year, round).
// With collapse set, events of one entity in the same race merge into one
// point. Keys are returned in sorted order so iteration is deterministic.
func Index(events []model.Event, key KeyFunc, collapse bool) (map[string]*Timeline, []string) {
	timelines := make(map[string]*Timeline)
	// (entity, race) -> index of the point in its timeline, collapse mode only
	slots := make(map[string]int)

	for i := range events {
		ev := &events[i]
		k := key(ev)
		if k == "" {
			continue
		}
		tl, ok := timelines[k]
		if !ok {
			tl = &Timeline{Key: k}
			timelines[k] = tl
		}
		if collapse {
			slot := dedupe.Key(k, ev.RaceID)
			if idx, ok := slots[slot]; ok {
				tl.Points[idx].Events = append(tl.Points[idx].Events, *ev)
				continue
			}
			slots[slot] = len(tl.Points)
		}
		tl.Points = append(tl.Points, Point{
			RaceID: ev.RaceID,
			Year:   ev.Year,
			Round:  ev.Round,
			Events: []model.Event{*ev},
		})
	}

	keys := make([]string, 0, len(timelines))
	for k, tl := range timelines {
		sort.SliceStable(tl.Points, func(i, j int) bool {
			a, b := &tl.Points[i], &tl.Points[j]
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			return a.Round < b.Round
		})
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return timelines, keys
}

// Driver keys by driver.
func Driver(e *model.Event) string { return e.DriverID }

// Constructor keys by constructor.
func Constructor(e *model.Event) string { return e.ConstructorID }

// Circuit keys by circuit.
func Circuit(e *model.Event) string { return e.CircuitID }

// DriverCircuit keys by the (driver, circuit) pair.
func DriverCircuit(e *model.Event) string {
	if e.DriverID == "" || e.CircuitID == "" {
		return ""
	}
	return dedupe.Key(e.DriverID, e.CircuitID)
}
