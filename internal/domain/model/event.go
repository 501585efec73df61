// Package model contains domain models passed between layers.
package model

import "math"

// Event is one driver's participation in one race, normalized from the
// results, races and qualifying tables. Numeric fields use NaN for MISSING.
type Event struct {
	ResultID      string // source row key of the result
	RaceID        string
	DriverID      string
	ConstructorID string
	CircuitID     string
	StatusID      string // categorical; one code means "finished"

	Year  int
	Round int // 1-based position within the season

	Position      float64 // finishing position, MISSING when not classified
	Grid          float64 // starting slot, 0 = pit lane / unknown
	Points        float64
	QualiPosition float64 // MISSING when there is no qualifying record
}

// Missing returns the MISSING sentinel.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the MISSING sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Finished reports whether the event's status is the finished code.
// Status is authoritative; Position is never consulted.
func (e *Event) Finished(finishedStatus string) bool {
	return e.StatusID == finishedStatus
}

// Before orders events chronologically by (year, round).
func (e *Event) Before(o *Event) bool {
	if e.Year != o.Year {
		return e.Year < o.Year
	}
	return e.Round < o.Round
}
