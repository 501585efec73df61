// Package synth generates deterministic synthetic seasons in the shape of
// the results, races and qualifying tables.
package synth

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/pkg/logger"
)

// Default generator configuration constants.
const (
	defaultSeasons      = 3
	defaultStartYear    = 2008
	defaultRounds       = 12
	defaultConstructors = 5
	defaultCircuits     = 8
	defaultSeed         = 42
	defaultDNFRate      = 0.12
	defaultQualiMissing = 0.03

	driversPerTeam = 2
	finishedStatus = "1"
	na             = `\N`
)

// retirement status codes drawn for non-finishers
var dnfStatuses = []string{"3", "4", "5", "11", "20"}

// points scale for the top ten, 2010 onward
var pointsTable = []float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Config controls the size and noise of the generated data.
type Config struct {
	Seasons      int
	StartYear    int
	Rounds       int
	Constructors int
	Circuits     int
	Seed         int64
	DNFRate      float64 // probability a car retires
	QualiMissing float64 // probability a qualifying record is absent
}

// DefaultConfig returns a small but non-trivial league.
func DefaultConfig() Config {
	return Config{
		Seasons:      defaultSeasons,
		StartYear:    defaultStartYear,
		Rounds:       defaultRounds,
		Constructors: defaultConstructors,
		Circuits:     defaultCircuits,
		Seed:         defaultSeed,
		DNFRate:      defaultDNFRate,
		QualiMissing: defaultQualiMissing,
	}
}

// Dataset holds the generated tables.
type Dataset struct {
	Results    *source.Table
	Races      *source.Table
	Qualifying *source.Table
}

// Tables returns the tables in a fixed order.
func (d *Dataset) Tables() []*source.Table {
	return []*source.Table{d.Races, d.Results, d.Qualifying}
}

// Source serves the dataset from memory.
func (d *Dataset) Source() *source.MemorySource {
	return source.NewMemorySource(d.Tables()...)
}

type entrant struct {
	driverID      string
	constructorID string
	skill         float64
}

// Generate builds a dataset. Equal configs produce equal datasets.
func Generate(cfg Config) *Dataset {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic seed for reproducible data

	entrants := make([]entrant, 0, cfg.Constructors*driversPerTeam)
	for c := 0; c < cfg.Constructors; c++ {
		teamPace := rng.Float64()
		for d := 0; d < driversPerTeam; d++ {
			entrants = append(entrants, entrant{
				driverID:      strconv.Itoa(c*driversPerTeam + d + 1),
				constructorID: strconv.Itoa(c + 1),
				skill:         teamPace + rng.Float64()*0.5,
			})
		}
	}

	ds := &Dataset{
		Races:      source.NewTable(source.TableRaces, []string{"raceId", "year", "round", "circuitId", "name"}),
		Results:    source.NewTable(source.TableResults, []string{"resultId", "raceId", "driverId", "constructorId", "number", "grid", "position", "points", "statusId"}),
		Qualifying: source.NewTable(source.TableQualifying, []string{"qualifyId", "raceId", "driverId", "constructorId", "position"}),
	}

	raceID, resultID, qualifyID := 0, 0, 0
	for s := 0; s < cfg.Seasons; s++ {
		year := cfg.StartYear + s
		for round := 1; round <= cfg.Rounds; round++ {
			raceID++
			race := strconv.Itoa(raceID)
			circuit := strconv.Itoa((round-1)%cfg.Circuits + 1)
			ds.Races.Records = append(ds.Races.Records, source.Record{
				"raceId": race, "year": strconv.Itoa(year), "round": strconv.Itoa(round),
				"circuitId": circuit, "name": fmt.Sprintf("Round %d", round),
			})

			quali := order(entrants, rng, 0.4)
			finish := order(entrants, rng, 0.6)
			grid := make(map[string]int, len(quali))
			for i, e := range quali {
				grid[e.driverID] = i + 1
				if rng.Float64() < cfg.QualiMissing {
					continue
				}
				qualifyID++
				ds.Qualifying.Records = append(ds.Qualifying.Records, source.Record{
					"qualifyId": strconv.Itoa(qualifyID), "raceId": race, "driverId": e.driverID,
					"constructorId": e.constructorID, "position": strconv.Itoa(i + 1),
				})
			}

			classified := 0
			var retired []entrant
			for _, e := range finish {
				if rng.Float64() < cfg.DNFRate {
					retired = append(retired, e)
					continue
				}
				classified++
				resultID++
				pts := 0.0
				if classified <= len(pointsTable) {
					pts = pointsTable[classified-1]
				}
				ds.Results.Records = append(ds.Results.Records, result(resultID, race, e, grid[e.driverID],
					strconv.Itoa(classified), pts, finishedStatus))
			}
			for _, e := range retired {
				resultID++
				status := dnfStatuses[rng.Intn(len(dnfStatuses))]
				ds.Results.Records = append(ds.Results.Records, result(resultID, race, e, grid[e.driverID], na, 0, status))
			}
		}
	}
	return ds
}

func result(id int, race string, e entrant, grid int, position string, points float64, status string) source.Record {
	return source.Record{
		"resultId":      strconv.Itoa(id),
		"raceId":        race,
		"driverId":      e.driverID,
		"constructorId": e.constructorID,
		"number":        e.driverID,
		"grid":          strconv.Itoa(grid),
		"position":      position,
		"points":        strconv.FormatFloat(points, 'g', -1, 64),
		"statusId":      status,
	}
}

// order ranks entrants by skill plus uniform noise, best first.
func order(entrants []entrant, rng *rand.Rand, noise float64) []entrant {
	type scored struct {
		e     entrant
		score float64
	}
	s := make([]scored, len(entrants))
	for i, e := range entrants {
		s[i] = scored{e: e, score: e.skill + rng.Float64()*noise}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].score > s[j].score })
	out := make([]entrant, len(s))
	for i := range s {
		out[i] = s[i].e
	}
	return out
}

// Shuffled returns a copy of d with every table's records permuted.
func (d *Dataset) Shuffled(seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic seed for reproducible data
	shuffle := func(t *source.Table) *source.Table {
		cp := &source.Table{Name: t.Name, Columns: t.Columns, Records: append([]source.Record(nil), t.Records...)}
		rng.Shuffle(len(cp.Records), func(i, j int) { cp.Records[i], cp.Records[j] = cp.Records[j], cp.Records[i] })
		return cp
	}
	return &Dataset{Results: shuffle(d.Results), Races: shuffle(d.Races), Qualifying: shuffle(d.Qualifying)}
}

// WriteDir writes each table to <dir>/<name>.csv.
func WriteDir(ctx context.Context, dir string, d *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, t := range d.Tables() {
		if err := writeTable(filepath.Join(dir, t.Name+".csv"), t); err != nil {
			return err
		}
		logger.Get().Info(ctx, "wrote synthetic table",
			logger.String("table", t.Name),
			logger.Int("rows", len(t.Records)),
		)
	}
	return nil
}

func writeTable(path string, t *source.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	row := make([]string, len(t.Columns))
	for _, rec := range t.Records {
		for i, c := range t.Columns {
			row[i] = rec[c]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
