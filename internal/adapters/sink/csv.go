// Package sink writes the training matrix out in a stable text form.
package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/pitwall/internal/domain/model"
)

// Identity columns written before the features.
var identityColumns = []string{"raceId", "driverId", "constructorId", "circuitId", "year", "round"}

// TargetColumn is the name of the label column.
const TargetColumn = "target"

// WriteCSV writes m as CSV: identity columns, features in matrix order, then
// the target. Floats use the shortest representation that round-trips, so
// equal matrices produce equal bytes.
func WriteCSV(ctx context.Context, w io.Writer, m *model.Matrix) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(identityColumns)+len(m.Columns)+1)
	header = append(header, identityColumns...)
	header = append(header, m.Columns...)
	header = append(header, TargetColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%w: header: %w", ErrWrite, err)
	}

	rec := make([]string, len(header))
	for i := range m.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := &m.Rows[i]
		rec = rec[:0]
		rec = append(rec, r.RaceID, r.DriverID, r.ConstructorID, r.CircuitID, strconv.Itoa(r.Year), strconv.Itoa(r.Round))
		for _, v := range r.Features {
			rec = append(rec, FormatFloat(v))
		}
		rec = append(rec, FormatFloat(r.Target))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrWrite, i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// WriteFile writes m to path, replacing it only once fully written.
func WriteFile(ctx context.Context, path string, m *model.Matrix) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = WriteCSV(ctx, bw, m); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// FormatFloat renders v for the matrix. MISSING is written as an empty field.
func FormatFloat(v float64) string {
	if model.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
