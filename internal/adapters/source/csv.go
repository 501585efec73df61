package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CSVSource reads <dir>/<table>.csv files with a header row.
type CSVSource struct {
	dir string
}

// NewCSVSource returns a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Table implements Source. The file is read fully; the pipeline materializes
// all input before aggregation anyway.
func (s *CSVSource) Table(ctx context.Context, name string) (*Table, error) {
	path := filepath.Join(s.dir, name+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrReadTable, path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(ctx, name, f)
}

// ReadCSV parses a header-first CSV stream into a Table.
func ReadCSV(ctx context.Context, name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Name: name}, nil
		}
		return nil, fmt.Errorf("%w: %s header: %w", ErrReadTable, name, err)
	}
	for i, h := range header {
		// strip a UTF-8 BOM and stray spaces from exported spreadsheets
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := [][]string{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadTable, name, err)
		}
		rows = append(rows, rec)
	}
	return NewTable(name, header, rows...), nil
}
