package schema

import (
	"fmt"
	"sort"
)

// Dataset is an immutable, column-oriented table of named numeric columns.
// All columns share the same row count. Construction validates shape; after
// that, lookups cannot fail for known columns.
type Dataset struct {
	columns map[string][]float64
	names   []string
	rows    int
}

// NewDataset builds a dataset from named columns. All columns must be
// non-empty and share the same length.
func NewDataset(columns map[string][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: dataset has no columns", ErrConfig)
	}
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := len(columns[names[0]])
	if rows == 0 {
		return nil, fmt.Errorf("%w: column %q is empty", ErrConfig, names[0])
	}
	stored := make(map[string][]float64, len(columns))
	for _, name := range names {
		col := columns[name]
		if len(col) != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrConfig, name, len(col), rows)
		}
		dup := make([]float64, rows)
		copy(dup, col)
		stored[name] = dup
	}
	return &Dataset{columns: stored, names: names, rows: rows}, nil
}

// Rows returns the row count shared by all columns.
func (d *Dataset) Rows() int { return d.rows }

// ColumnNames returns the column names in sorted order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// Column returns the values of the named column. The returned slice is a
// copy, so callers may mutate it freely.
func (d *Dataset) Column(name string) ([]float64, error) {
	col, ok := d.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", ErrConfig, name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// View returns the backing slice of the named column for read-only use.
// It avoids the copy made by Column for hot paths that only read.
func (d *Dataset) View(name string) ([]float64, bool) {
	col, ok := d.columns[name]
	return col, ok
}
