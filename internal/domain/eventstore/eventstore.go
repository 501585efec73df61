// Package eventstore normalizes raw results, races and qualifying records into
// typed model.Event values. It coerces types and never aggregates.
package eventstore

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Column names of the source tables.
const (
	colResultID      = "resultId"
	colRaceID        = "raceId"
	colDriverID      = "driverId"
	colConstructorID = "constructorId"
	colPosition      = "position"
	colGrid          = "grid"
	colPoints        = "points"
	colStatusID      = "statusId"
	colYear          = "year"
	colRound         = "round"
	colCircuitID     = "circuitId"
)

var (
	resultColumns     = []string{colResultID, colRaceID, colDriverID, colConstructorID, colPosition, colGrid, colPoints, colStatusID}
	raceColumns       = []string{colRaceID, colYear, colRound, colCircuitID}
	qualifyingColumns = []string{colRaceID, colDriverID, colPosition}
)

// Input bundles the raw tables. Qualifying is optional; without it every
// event's QualiPosition is MISSING.
type Input struct {
	Results    *source.Table
	Races      *source.Table
	Qualifying *source.Table
}

// Report summarizes what normalization degraded or dropped.
type Report struct {
	Events     int
	Unparsable map[string]int // column -> values coerced to MISSING
	Duplicates int            // result rows dropped for a repeated (raceId, driverId)
}

type race struct {
	year, round int
	circuitID   string
}

// Store normalizes raw tables into events.
type Store struct {
	naValues map[string]struct{}
	logger   logger.Logger
}

// New creates a Store. By default `\N` and the empty string are MISSING.
func New(opts ...Option) *Store {
	s := &Store{
		naValues: map[string]struct{}{`\N`: {}, "": {}},
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize converts the raw tables into events sorted by
// (year, round, raceId, driverId). Unparsable numeric values become MISSING;
// only absent columns or keys fail, with an error wrapping ErrMalformedInput.
func (s *Store) Normalize(ctx context.Context, in Input) ([]model.Event, Report, error) {
	rep := Report{Unparsable: map[string]int{}}

	if in.Results == nil {
		return nil, rep, missingColumn(source.TableResults, "*")
	}
	if in.Races == nil {
		return nil, rep, missingColumn(source.TableRaces, "*")
	}
	if err := requireColumns(in.Results, resultColumns); err != nil {
		return nil, rep, err
	}
	if err := requireColumns(in.Races, raceColumns); err != nil {
		return nil, rep, err
	}

	races, err := s.indexRaces(in.Races)
	if err != nil {
		return nil, rep, err
	}
	quali, err := s.indexQualifying(in.Qualifying, &rep)
	if err != nil {
		return nil, rep, err
	}

	events := make([]model.Event, 0, len(in.Results.Records))
	for i, rec := range in.Results.Records {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		for _, key := range []string{colRaceID, colDriverID} {
			if s.emptyKey(rec[key]) {
				return nil, rep, missingKey(source.TableResults, key, i, "empty key")
			}
		}
		raceID := strings.TrimSpace(rec[colRaceID])
		r, ok := races[raceID]
		if !ok {
			return nil, rep, missingKey(source.TableResults, colRaceID, i, "race "+raceID+" not in races table")
		}

		ev := model.Event{
			ResultID:      strings.TrimSpace(rec[colResultID]),
			RaceID:        raceID,
			DriverID:      strings.TrimSpace(rec[colDriverID]),
			ConstructorID: strings.TrimSpace(rec[colConstructorID]),
			CircuitID:     r.circuitID,
			StatusID:      strings.TrimSpace(rec[colStatusID]),
			Year:          r.year,
			Round:         r.round,
			Position:      s.number(rec[colPosition], colPosition, &rep),
			Grid:          s.number(rec[colGrid], colGrid, &rep),
			Points:        s.number(rec[colPoints], colPoints, &rep),
			QualiPosition: model.Missing(),
		}
		if q, ok := quali[dedupe.Key(ev.RaceID, ev.DriverID)]; ok {
			ev.QualiPosition = q
		}
		events = append(events, ev)
	}

	Sort(events)
	events = s.dropDuplicates(ctx, events, &rep)

	rep.Events = len(events)
	metrics.RecordEventsNormalized(rep.Events)
	for col, n := range rep.Unparsable {
		metrics.RecordUnparsableValues(col, n)
	}
	s.logger.Info(ctx, "normalized events",
		logger.Int("events", rep.Events),
		logger.Int("duplicates", rep.Duplicates),
		logger.Any("unparsable", rep.Unparsable),
	)
	return events, rep, nil
}

func (s *Store) indexRaces(t *source.Table) (map[string]race, error) {
	races := make(map[string]race, len(t.Records))
	for i, rec := range t.Records {
		id := strings.TrimSpace(rec[colRaceID])
		if s.emptyKey(id) {
			return nil, missingKey(source.TableRaces, colRaceID, i, "empty key")
		}
		// year and round define the timeline order, so they are keys, not values
		year, err := strconv.Atoi(strings.TrimSpace(rec[colYear]))
		if err != nil {
			return nil, missingKey(source.TableRaces, colYear, i, "year is not an integer")
		}
		round, err := strconv.Atoi(strings.TrimSpace(rec[colRound]))
		if err != nil {
			return nil, missingKey(source.TableRaces, colRound, i, "round is not an integer")
		}
		races[id] = race{year: year, round: round, circuitID: strings.TrimSpace(rec[colCircuitID])}
	}
	return races, nil
}

// indexQualifying maps (raceId, driverId) to qualifying position. Repeated
// pairs keep the best (lowest) position so the result is order independent.
func (s *Store) indexQualifying(t *source.Table, rep *Report) (map[string]float64, error) {
	out := map[string]float64{}
	if t == nil {
		return out, nil
	}
	if err := requireColumns(t, qualifyingColumns); err != nil {
		return nil, err
	}
	for _, rec := range t.Records {
		raceID, driverID := strings.TrimSpace(rec[colRaceID]), strings.TrimSpace(rec[colDriverID])
		if s.emptyKey(raceID) || s.emptyKey(driverID) {
			continue
		}
		pos := s.number(rec[colPosition], "quali_"+colPosition, rep)
		key := dedupe.Key(raceID, driverID)
		prev, seen := out[key]
		switch {
		case !seen, model.IsMissing(prev):
			out[key] = pos
		case !model.IsMissing(pos) && pos < prev:
			out[key] = pos
		}
	}
	return out, nil
}

// dropDuplicates keeps the first event per (raceId, driverId) in sorted order.
// Events are sorted with resultId as the last tie breaker, so the survivor
// does not depend on input order.
func (s *Store) dropDuplicates(ctx context.Context, events []model.Event, rep *Report) []model.Event {
	d := dedupe.NewInMemoryDeduper(dedupe.WithExpectedSize(len(events)))
	out := events[:0]
	for _, ev := range events {
		if d.SeenAndRecord(ctx, dedupe.Key(ev.RaceID, ev.DriverID)) {
			rep.Duplicates++
			metrics.RecordDuplicateDropped()
			s.logger.Debug(ctx, "dropping duplicate result",
				logger.String("raceId", ev.RaceID),
				logger.String("driverId", ev.DriverID),
				logger.String("resultId", ev.ResultID),
			)
			continue
		}
		out = append(out, ev)
	}
	s.logger.Debug(ctx, "results deduplicated",
		logger.Int("unique", int(d.Size())),
		logger.Int("duplicates", rep.Duplicates),
	)
	return out
}

func (s *Store) emptyKey(v string) bool {
	return strings.TrimSpace(v) == "" || s.isNA(v)
}

func (s *Store) isNA(v string) bool {
	_, ok := s.naValues[strings.TrimSpace(v)]
	return ok
}

// number parses v as float64. NA sentinels are MISSING silently; anything
// else that fails to parse is MISSING and counted as unparsable.
func (s *Store) number(v, column string, rep *Report) float64 {
	v = strings.TrimSpace(v)
	if s.isNA(v) {
		return model.Missing()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		rep.Unparsable[column]++
		return model.Missing()
	}
	return f
}

func requireColumns(t *source.Table, cols []string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return missingColumn(t.Name, c)
		}
	}
	return nil
}

// Sort orders events canonically by (year, round, raceId, driverId, resultId).
func Sort(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if c := CompareIDs(a.RaceID, b.RaceID); c != 0 {
			return c < 0
		}
		if c := CompareIDs(a.DriverID, b.DriverID); c != 0 {
			return c < 0
		}
		return CompareIDs(a.ResultID, b.ResultID) < 0
	})
}

// CompareIDs is a total order over ids: integers first in numeric order, then
// everything else in lexical order.
func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			// "7" and "007" stay distinct
			return strings.Compare(a, b)
		}
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
