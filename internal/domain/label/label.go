// Package label derives the supervised target, filters ineligible rows and
// imputes remaining gaps from the retained rows only.
package label

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Target rule names.
const (
	TargetWin    = "win"
	TargetPoints = "points"
)

// Filter reasons, used as metric labels.
const (
	ReasonBeforeMinYear = "before_min_year"
	ReasonAfterMaxYear  = "after_max_year"
	ReasonMissingGrid   = "missing_grid"
	ReasonMissingQuali  = "missing_qualifying"
	ReasonMissingTarget = "missing_target"
)

const (
	// DefaultMinYear is the qualifying format boundary.
	DefaultMinYear = 2003

	imputeAllMissingWith = 0.0
)

// TargetRule derives the label of one observation from its raw outcome.
type TargetRule interface {
	Name() string
	// Target returns the label, or MISSING if the row cannot be labeled.
	Target(e *model.Event) float64
}

// Win labels first place as 1 and anything else, unclassified included, as 0.
type Win struct{}

// Name implements TargetRule.
func (Win) Name() string { return TargetWin }

// Target implements TargetRule.
func (Win) Target(e *model.Event) float64 {
	if e.Position == 1 {
		return 1
	}
	return 0
}

// Points labels with the raw points scored.
type Points struct{}

// Name implements TargetRule.
func (Points) Name() string { return TargetPoints }

// Target implements TargetRule.
func (Points) Target(e *model.Event) float64 { return e.Points }

// RuleByName resolves a configured target name.
func RuleByName(name string) (TargetRule, error) {
	switch name {
	case TargetWin:
		return Win{}, nil
	case TargetPoints:
		return Points{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
}

// Eligibility decides which observations enter the matrix.
type Eligibility struct {
	MinYear           int // 0 disables the lower bound
	MaxYear           int // 0 disables the upper bound
	RequireGrid       bool
	RequireQualifying bool
}

// DefaultEligibility keeps rows from 2003 on that have grid and qualifying.
func DefaultEligibility() Eligibility {
	return Eligibility{MinYear: DefaultMinYear, RequireGrid: true, RequireQualifying: true}
}

// Reason returns why e is ineligible, or "" if it is eligible.
func (el Eligibility) Reason(e *model.Event) string {
	switch {
	case el.MinYear > 0 && e.Year < el.MinYear:
		return ReasonBeforeMinYear
	case el.MaxYear > 0 && e.Year > el.MaxYear:
		return ReasonAfterMaxYear
	case el.RequireGrid && model.IsMissing(e.Grid):
		return ReasonMissingGrid
	case el.RequireQualifying && model.IsMissing(e.QualiPosition):
		return ReasonMissingQuali
	default:
		return ""
	}
}

// Labeler turns joined rows into the training matrix.
type Labeler struct {
	rule   TargetRule
	elig   Eligibility
	logger logger.Logger
}

// New creates a Labeler.
func New(rule TargetRule, elig Eligibility, opts ...Option) *Labeler {
	l := &Labeler{rule: rule, elig: elig, logger: logger.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Label assigns targets, drops ineligible rows and fills every MISSING
// feature with its column median over the retained rows. The input rows are
// not modified.
func (l *Labeler) Label(ctx context.Context, rows []model.Row, columns []string) (*model.Matrix, error) {
	if l.rule == nil {
		return nil, ErrNoTargetRule
	}
	for i := range rows {
		if len(rows[i].Features) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d features for %d columns",
				ErrShapeMismatch, i, len(rows[i].Features), len(columns))
		}
	}

	m := &model.Matrix{
		Target:     l.rule.Name(),
		Columns:    append([]string(nil), columns...),
		Imputation: make(map[string]float64, len(columns)),
	}
	filtered := map[string]int{}
	for i := range rows {
		r := rows[i]
		reason := l.elig.Reason(&r.Event)
		if reason == "" {
			r.Target = l.rule.Target(&r.Event)
			if model.IsMissing(r.Target) {
				reason = ReasonMissingTarget
			}
		}
		if reason != "" {
			filtered[reason]++
			metrics.RecordRowFiltered(reason)
			continue
		}
		r.Features = append([]float64(nil), r.Features...)
		m.Rows = append(m.Rows, r)
	}

	for j, col := range m.Columns {
		observed := make([]float64, 0, len(m.Rows))
		for i := range m.Rows {
			if v := m.Rows[i].Features[j]; !model.IsMissing(v) {
				observed = append(observed, v)
			}
		}
		fill := imputeAllMissingWith
		if len(observed) > 0 {
			fill = Median(observed)
		} else if len(m.Rows) > 0 {
			l.logger.Warn(ctx, "column has no observed values",
				logger.String("column", col),
				logger.Float64("fill", fill),
			)
		}
		m.Imputation[col] = fill

		imputed := 0
		for i := range m.Rows {
			if model.IsMissing(m.Rows[i].Features[j]) {
				m.Rows[i].Features[j] = fill
				imputed++
			}
		}
		if imputed > 0 {
			metrics.RecordImputed(col, imputed)
		}
	}

	metrics.UpdateMatrixRows(len(m.Rows))
	l.logger.Info(ctx, "labeled matrix",
		logger.String("target", m.Target),
		logger.Int("rows", len(m.Rows)),
		logger.Int("columns", len(m.Columns)),
		logger.Any("filtered", filtered),
	)
	return m, nil
}

// Median returns the median of xs, averaging the two middle values for an
// even count. xs is reordered.
func Median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}
