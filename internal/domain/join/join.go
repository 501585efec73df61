// Package join fans per-dimension snapshot streams back in onto the event
// grain: one row per (raceId, driverId).
package join

import (
	"context"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/internal/domain/timeline"
	"github.com/okian/pitwall/pkg/metrics"
)

// SnapshotLookup finds an entity's snapshot at a race.
type SnapshotLookup interface {
	Lookup(entity, raceID string) (rolling.Snapshot, bool)
}

// Dimension is one aggregated stream to join.
type Dimension struct {
	Name      string
	Columns   []string
	Key       timeline.KeyFunc
	Snapshots SnapshotLookup
}

// RawColumn copies a value straight from the event.
type RawColumn struct {
	Name  string
	Value func(*model.Event) float64
}

// Columns returns the joined column order: raw columns, then each
// dimension's columns in declaration order.
func Columns(dims []Dimension, raw []RawColumn) []string {
	var cols []string
	for _, r := range raw {
		cols = append(cols, r.Name)
	}
	for _, d := range dims {
		cols = append(cols, d.Columns...)
	}
	return cols
}

// Join builds one row per event, in event order. Each dimension is looked up
// by the event's own entity key and race, never by value. A lookup miss
// fills that dimension's columns with MISSING and keeps the row. Only a done
// ctx fails the join.
func Join(ctx context.Context, events []model.Event, dims []Dimension, raw []RawColumn) ([]model.Row, error) {
	width := len(raw)
	for _, d := range dims {
		width += len(d.Columns)
	}

	rows := make([]model.Row, len(events))
	for i := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := &events[i]
		features := make([]float64, 0, width)
		for _, r := range raw {
			features = append(features, r.Value(ev))
		}
		for _, d := range dims {
			snap, ok := d.Snapshots.Lookup(d.Key(ev), ev.RaceID)
			if !ok || len(snap.Values) != len(d.Columns) {
				metrics.RecordJoinMiss(d.Name)
				for range d.Columns {
					features = append(features, model.Missing())
				}
				continue
			}
			features = append(features, snap.Values...)
		}
		rows[i] = model.Row{
			RaceID:        ev.RaceID,
			DriverID:      ev.DriverID,
			ConstructorID: ev.ConstructorID,
			CircuitID:     ev.CircuitID,
			Year:          ev.Year,
			Round:         ev.Round,
			Event:         *ev,
			Features:      features,
		}
	}
	return rows, nil
}
