// Package source reads the raw tabular inputs (results, races, qualifying, ...)
// that the event store normalizes. It does no type coercion.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Table names the pipeline consumes.
const (
	TableResults      = "results"
	TableRaces        = "races"
	TableQualifying   = "qualifying"
	TableDrivers      = "drivers"
	TableConstructors = "constructors"
	TableCircuits     = "circuits"
)

// Record is one raw row. Values are the untouched source strings.
type Record map[string]string

// Table is a named, header-described sequence of records.
type Table struct {
	Name    string
	Columns []string
	Records []Record
}

// HasColumn reports whether the table header declares col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Source provides tables by name.
type Source interface {
	// Table returns the named table or an error wrapping ErrTableNotFound.
	Table(ctx context.Context, name string) (*Table, error)
}

// MemorySource serves tables held in memory.
type MemorySource struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMemorySource returns a source over the given tables.
func NewMemorySource(tables ...*Table) *MemorySource {
	s := &MemorySource{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Name] = t
	}
	return s
}

// Put adds or replaces a table.
func (s *MemorySource) Put(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = t
}

// Table implements Source.
func (s *MemorySource) Table(_ context.Context, name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// Names returns the stored table names in sorted order.
func (s *MemorySource) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewTable builds a table from a header and positional rows. Short rows are
// padded with empty strings so every record carries every column.
func NewTable(name string, columns []string, rows ...[]string) *Table {
	t := &Table{Name: name, Columns: append([]string(nil), columns...)}
	for _, r := range rows {
		rec := make(Record, len(columns))
		for i, c := range columns {
			if i < len(r) {
				rec[c] = r[i]
			} else {
				rec[c] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}
