// Package features declares the feature dimensions of the training matrix:
// which entity each dimension tracks, how its timeline is built and which
// rolling statistics it emits.
package features

import (
	"strconv"

	"github.com/okian/pitwall/internal/domain/join"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/internal/domain/timeline"
	"github.com/okian/pitwall/internal/domain/types"
)

// Dimension names.
const (
	DimDriver        = "driver"
	DimConstructor   = "constructor"
	DimCircuit       = "circuit"
	DimDriverCircuit = "driver_circuit"
	DimRaw           = "raw"
)

// Dimension is one independently aggregated entity stream.
type Dimension struct {
	Name string
	Key  timeline.KeyFunc
	// Collapse merges an entity's events in one race into one point.
	Collapse bool
	Stats    []rolling.Stat
}

// Columns returns the dimension's column names in declaration order.
func (d *Dimension) Columns() []string {
	cols := make([]string, len(d.Stats))
	for i := range d.Stats {
		cols[i] = d.Stats[i].Name
	}
	return cols
}

// Raw returns the pass-through covariates. Both are known before the race.
func Raw() []join.RawColumn {
	return []join.RawColumn{
		{Name: "grid", Value: func(e *model.Event) float64 { return e.Grid }},
		{Name: "quali_position", Value: func(e *model.Event) float64 { return e.QualiPosition }},
	}
}

// Default returns the driver, constructor, circuit and driver×circuit
// dimensions. Statistics over position, points or status are exclusive
// because every target rule reads those fields.
func Default(finishedStatus string) []Dimension {
	won := predicate(func(e *model.Event) bool { return e.Position == 1 })
	podium := predicate(func(e *model.Event) bool { return e.Position <= 3 })
	dnf := func(e *model.Event) float64 {
		if e.Finished(finishedStatus) {
			return 0
		}
		return 1
	}

	return []Dimension{
		{
			Name: DimDriver,
			Key:  timeline.Driver,
			Stats: []rolling.Stat{
				{Name: "rolling_wins", Kind: rolling.KindSum, Policy: rolling.Exclusive, Value: first(won)},
				{Name: "rolling_win_rate", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: first(won)},
				{Name: "rolling_podiums", Kind: rolling.KindSum, Policy: rolling.Exclusive, Value: first(podium)},
				{Name: "rolling_avg_pos", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: first(position)},
				{Name: "rolling_dnf_rate", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: first(dnf)},
				{Name: "rolling_points", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: first(points)},
				{Name: "rolling_avg_grid", Kind: rolling.KindMean, Policy: rolling.Inclusive, Value: first(grid)},
				{Name: "career_starts", Kind: rolling.KindCounter},
			},
		},
		{
			Name:     DimConstructor,
			Key:      timeline.Constructor,
			Collapse: true,
			Stats: []rolling.Stat{
				{Name: "constructor_rolling_points", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: sum(points)},
				{Name: "constructor_rolling_avg_pos", Kind: rolling.KindMean, Policy: rolling.Exclusive, Value: mean(position)},
				{Name: "constructor_dnf_rate", Kind: rolling.KindRatio, Policy: rolling.Exclusive, Value: sum(dnf), Den: entries},
			},
		},
		{
			Name:     DimCircuit,
			Key:      timeline.Circuit,
			Collapse: true,
			Stats: []rolling.Stat{
				{Name: "circuit_dnf_rate", Kind: rolling.KindRatio, Policy: rolling.Exclusive, Window: rolling.Unbounded, Value: sum(dnf), Den: entries},
				{Name: "circuit_avg_pos", Kind: rolling.KindMean, Policy: rolling.Exclusive, Window: rolling.Unbounded, Value: mean(position)},
				{Name: "circuit_races", Kind: rolling.KindCounter},
			},
		},
		{
			Name: DimDriverCircuit,
			Key:  timeline.DriverCircuit,
			Stats: []rolling.Stat{
				{Name: "driver_circuit_avg_pos", Kind: rolling.KindMean, Policy: rolling.Exclusive, Window: rolling.Unbounded, Value: first(position)},
				{Name: "driver_circuit_points", Kind: rolling.KindSum, Policy: rolling.Exclusive, Window: rolling.Unbounded, Value: first(points)},
				{Name: "driver_circuit_races", Kind: rolling.KindCounter},
			},
		},
	}
}

// Describe lists every column with its dimension, kind and window policy.
func Describe(raw []join.RawColumn, dims []Dimension, windowSize int) []types.Column {
	var out []types.Column
	for _, r := range raw {
		out = append(out, types.Column{Name: r.Name, Dimension: DimRaw, Kind: "value", Policy: "n/a", Window: "n/a"})
	}
	for _, d := range dims {
		for _, s := range d.Stats {
			c := types.Column{Name: s.Name, Dimension: d.Name, Kind: s.Kind.String(), Policy: s.Policy.String()}
			switch {
			case s.Kind == rolling.KindCounter:
				c.Policy, c.Window = "n/a", "n/a"
			case s.Window == rolling.Unbounded:
				c.Window = "unbounded"
			case s.Window == 0:
				c.Window = strconv.Itoa(windowSize)
			default:
				c.Window = strconv.Itoa(s.Window)
			}
			out = append(out, c)
		}
	}
	return out
}

func position(e *model.Event) float64 { return e.Position }
func points(e *model.Event) float64   { return e.Points }
func grid(e *model.Event) float64     { return e.Grid }

// predicate maps a test to 0/1. A MISSING position compares false, so an
// unclassified result is neither a win nor a podium.
func predicate(f func(*model.Event) bool) func(*model.Event) float64 {
	return func(e *model.Event) float64 {
		if f(e) {
			return 1
		}
		return 0
	}
}

// first reads the single event of a driver-grain point.
func first(f func(*model.Event) float64) rolling.Extractor {
	return func(p *timeline.Point) float64 {
		if len(p.Events) == 0 {
			return model.Missing()
		}
		return f(&p.Events[0])
	}
}

// sum adds the non-MISSING values of a collapsed point; MISSING if none.
func sum(f func(*model.Event) float64) rolling.Extractor {
	return func(p *timeline.Point) float64 {
		total, n := 0.0, 0
		for i := range p.Events {
			if v := f(&p.Events[i]); !model.IsMissing(v) {
				total += v
				n++
			}
		}
		if n == 0 {
			return model.Missing()
		}
		return total
	}
}

// mean averages the non-MISSING values of a collapsed point; MISSING if none.
func mean(f func(*model.Event) float64) rolling.Extractor {
	return func(p *timeline.Point) float64 {
		total, n := 0.0, 0
		for i := range p.Events {
			if v := f(&p.Events[i]); !model.IsMissing(v) {
				total += v
				n++
			}
		}
		if n == 0 {
			return model.Missing()
		}
		return total / float64(n)
	}
}

func entries(p *timeline.Point) float64 { return float64(len(p.Events)) }
