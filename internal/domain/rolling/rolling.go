// Package rolling computes point-in-time statistics over an entity timeline.
//
// Aggregate is a pure function: one Snapshot per timeline point, in timeline
// order, with no state shared across calls. Safe for parallel use.
package rolling

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/timeline"
)

// Kind selects how a window of extracted values reduces to one number.
type Kind int

const (
	// KindSum sums the non-MISSING values. Counts are sums of 0/1 predicates.
	KindSum Kind = iota
	// KindMean averages the non-MISSING values. Rates are means of 0/1 predicates.
	KindMean
	// KindRatio divides the sum of values by the sum of Den over the window.
	KindRatio
	// KindCounter is the 1-based index of the point in the whole timeline.
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindSum:
		return "sum"
	case KindMean:
		return "mean"
	case KindRatio:
		return "ratio"
	case KindCounter:
		return "counter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Policy decides whether the current point is part of its own window.
type Policy int

const (
	// Exclusive windows cover strictly prior points: [i-w, i).
	Exclusive Policy = iota
	// Inclusive windows end at the current point: [i-w+1, i].
	Inclusive
)

func (p Policy) String() string {
	switch p {
	case Exclusive:
		return "exclusive"
	case Inclusive:
		return "inclusive"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Unbounded as a Stat.Window uses the whole history.
const Unbounded = -1

// Extractor reads one value from a timeline point. MISSING values are
// skipped by every kind.
type Extractor func(*timeline.Point) float64

// Stat declares one output column.
type Stat struct {
	Name   string
	Kind   Kind
	Policy Policy
	Value  Extractor
	Den    Extractor // KindRatio only
	// Window in points; 0 inherits the aggregate window size, Unbounded
	// uses every prior point.
	Window int
}

// Snapshot holds one value per declared Stat for a timeline point.
type Snapshot struct {
	RaceID string
	Values []float64
}

// Validate checks a stat set without computing anything.
func Validate(stats []Stat) error {
	seen := make(map[string]struct{}, len(stats))
	for i := range stats {
		s := &stats[i]
		if s.Name == "" {
			return fmt.Errorf("%w: stat %d has no name", ErrInvalidStat, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate stat %q", ErrInvalidStat, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Window < Unbounded {
			return fmt.Errorf("%w: stat %q: window %d", ErrInvalidStat, s.Name, s.Window)
		}
		switch s.Kind {
		case KindCounter:
			continue
		case KindSum, KindMean:
		case KindRatio:
			if s.Den == nil {
				return fmt.Errorf("%w: ratio stat %q has no denominator", ErrInvalidStat, s.Name)
			}
		default:
			return fmt.Errorf("%w: stat %q: unknown kind %d", ErrInvalidStat, s.Name, int(s.Kind))
		}
		if s.Value == nil {
			return fmt.Errorf("%w: stat %q has no extractor", ErrInvalidStat, s.Name)
		}
		if s.Policy != Exclusive && s.Policy != Inclusive {
			return fmt.Errorf("%w: stat %q: unknown policy %d", ErrInvalidStat, s.Name, int(s.Policy))
		}
	}
	return nil
}

// Aggregate returns one snapshot per point of tl. windowSize is the default
// window for stats that do not set their own and must be positive.
func Aggregate(tl *timeline.Timeline, windowSize int, stats []Stat) ([]Snapshot, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("%w: window size %d", ErrInvalidWindow, windowSize)
	}
	if err := Validate(stats); err != nil {
		return nil, err
	}
	n := tl.Len()
	out := make([]Snapshot, n)
	for i := range out {
		out[i] = Snapshot{RaceID: tl.Points[i].RaceID, Values: make([]float64, len(stats))}
	}

	for j := range stats {
		s := &stats[j]
		if s.Kind == KindCounter {
			for i := range out {
				out[i].Values[j] = float64(i + 1)
			}
			continue
		}

		// extract once per point; windows then slice these
		vals := make([]float64, n)
		var dens []float64
		if s.Kind == KindRatio {
			dens = make([]float64, n)
		}
		for i := range tl.Points {
			vals[i] = s.Value(&tl.Points[i])
			if dens != nil {
				dens[i] = s.Den(&tl.Points[i])
			}
		}

		w := s.Window
		if w == 0 {
			w = windowSize
		}
		buf := make([]float64, 0, n)
		dbuf := make([]float64, 0, n)
		for i := range out {
			lo, hi := bounds(i, w, s.Policy)
			out[i].Values[j] = reduce(s.Kind, vals[lo:hi], sliceOrNil(dens, lo, hi), buf[:0], dbuf[:0])
		}
	}
	return out, nil
}

// bounds returns the half-open window [lo, hi) at position i.
func bounds(i, w int, p Policy) (int, int) {
	hi := i
	if p == Inclusive {
		hi = i + 1
	}
	lo := 0
	if w != Unbounded {
		lo = hi - w
		if lo < 0 {
			lo = 0
		}
	}
	return lo, hi
}

func sliceOrNil(s []float64, lo, hi int) []float64 {
	if s == nil {
		return nil
	}
	return s[lo:hi]
}

// reduce folds one window. Zero usable entries is MISSING, never zero.
func reduce(kind Kind, vals, dens, buf, dbuf []float64) float64 {
	switch kind {
	case KindSum, KindMean:
		for _, v := range vals {
			if !model.IsMissing(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			return model.Missing()
		}
		if kind == KindSum {
			return floats.Sum(buf)
		}
		return stat.Mean(buf, nil)
	case KindRatio:
		for k, v := range vals {
			if model.IsMissing(v) || model.IsMissing(dens[k]) {
				continue
			}
			buf = append(buf, v)
			dbuf = append(dbuf, dens[k])
		}
		if len(buf) == 0 {
			return model.Missing()
		}
		den := floats.Sum(dbuf)
		if den == 0 {
			return model.Missing()
		}
		return floats.Sum(buf) / den
	default:
		return model.Missing()
	}
}
