package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError reports a required column absent from a table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// Is reports whether target is ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// Table is an immutable date-indexed set of float64 columns.
// Dates are UTC midnights in strictly increasing order. Missing values are NaN.
// Every method that adds columns returns a new Table and leaves the receiver untouched.
type Table struct {
	dates []time.Time
	order []string
	cols  map[string][]float64
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// New creates an empty table over dates.
// Returns an error if two dates fall on the same day or are out of order.
func New(dates []time.Time) (*Table, error) {
	ds := make([]time.Time, len(dates))
	for i, d := range dates {
		ds[i] = Day(d)
		if i > 0 && !ds[i].After(ds[i-1]) {
			return nil, fmt.Errorf("date %s at row %d is not after %s", ds[i].Format(time.DateOnly), i, ds[i-1].Format(time.DateOnly))
		}
	}
	return &Table{dates: ds, cols: make(map[string][]float64)}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.dates) }

// Dates returns a copy of the row index.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Date returns the date at row i.
func (t *Table) Date(i int) time.Time { return t.dates[i] }

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	v, ok := t.cols[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out, nil
}

// Require fails with a MissingColumnError for the first absent column.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return &MissingColumnError{Column: n}
		}
	}
	return nil
}

// Value returns column name at row i, NaN when out of range.
func (t *Table) Value(name string, i int) (float64, error) {
	v, ok := t.cols[name]
	if !ok {
		return math.NaN(), &MissingColumnError{Column: name}
	}
	if i < 0 || i >= len(v) {
		return math.NaN(), nil
	}
	return v[i], nil
}

// Last returns the value offset rows back from the end: offset 1 is the last row.
func (t *Table) Last(name string, offset int) (float64, error) {
	return t.Value(name, t.Len()-offset)
}

// With returns a new table with the column added or replaced.
func (t *Table) With(name string, values []float64) (*Table, error) {
	return t.WithColumns(Col{Name: name, Values: values})
}

// Col pairs a column name with values for WithColumns.
type Col struct {
	Name   string
	Values []float64
}

// WithColumns returns a new table with all columns added or replaced.
// Replaced columns keep their original position.
func (t *Table) WithColumns(cols ...Col) (*Table, error) {
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.New("column name is empty")
		}
		if len(c.Values) != len(t.dates) {
			return nil, fmt.Errorf("column %q has %d values, table has %d rows", c.Name, len(c.Values), len(t.dates))
		}
	}
	out := t.shallow()
	for _, c := range cols {
		if _, ok := out.cols[c.Name]; !ok {
			out.order = append(out.order, c.Name)
		}
		v := make([]float64, len(c.Values))
		copy(v, c.Values)
		out.cols[c.Name] = v
	}
	return out, nil
}

// shallow copies the index and column map. Column slices are shared because
// they are never written after insertion.
func (t *Table) shallow() *Table {
	out := &Table{
		dates: t.dates,
		order: make([]string, len(t.order), len(t.order)+4),
		cols:  make(map[string][]float64, len(t.cols)+4),
	}
	copy(out.order, t.order)
	for k, v := range t.cols {
		out.cols[k] = v
	}
	return out
}

// Index returns the row of date d, or -1.
func (t *Table) Index(d time.Time) int {
	day := Day(d)
	i := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(day) })
	if i < len(t.dates) && t.dates[i].Equal(day) {
		return i
	}
	return -1
}
