// Package table provides a small column-oriented table for sensor records.
//
// Float columns mark missing values with NaN, string columns with the empty
// string and time columns with the zero time.
package table

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	Float Kind = iota
	String
	Time
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case String:
		return "string"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named, typed vector of cells. Only the slice matching Kind is set.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Times   []time.Time
}

// NewFloat creates a float column.
func NewFloat(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Float, Floats: values}
}

// NewString creates a string column.
func NewString(name string, values []string) *Column {
	return &Column{Name: name, Kind: String, Strings: values}
}

// NewTime creates a time column.
func NewTime(name string, values []time.Time) *Column {
	return &Column{Name: name, Kind: Time, Times: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	switch c.Kind {
	case Float:
		return len(c.Floats)
	case String:
		return len(c.Strings)
	default:
		return len(c.Times)
	}
}

// IsMissing reports whether cell i holds no value.
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case Float:
		return math.IsNaN(c.Floats[i])
	case String:
		return c.Strings[i] == ""
	default:
		return c.Times[i].IsZero()
	}
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// AllMissing reports whether the column has no observed value.
func (c *Column) AllMissing() bool {
	return c.MissingCount() == c.Len()
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Float:
		out.Floats = append([]float64(nil), c.Floats...)
	case String:
		out.Strings = append([]string(nil), c.Strings...)
	default:
		out.Times = append([]time.Time(nil), c.Times...)
	}
	return out
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Float:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case String:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	default:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	}
	return out
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols []*Column
}

// New builds a table, checking that names are unique and lengths agree.
func New(cols ...*Column) (*Table, error) {
	t := &Table{}
	for _, c := range cols {
		if c != nil && t.Has(c.Name) {
			return nil, fmt.Errorf("column %q appears twice", c.Name)
		}
		if err := t.Set(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.cols)
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column {
	return t.cols
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	return t.cols[i], true
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Set replaces the column with the same name or appends it. Unlike New it
// does not reject an existing name.
func (t *Table) Set(c *Column) error {
	if c == nil {
		return errors.New("nil column")
	}
	if len(t.cols) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.NumRows())
	}
	if i := t.Index(c.Name); i >= 0 {
		t.cols[i] = c
		return nil
	}
	t.cols = append(t.cols, c)
	return nil
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.cols = kept
}

// Rename changes a column name in place.
func (t *Table) Rename(old, name string) error {
	i := t.Index(old)
	if i < 0 {
		return fmt.Errorf("column %q not found", old)
	}
	if old != name && t.Has(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	t.cols[i].Name = name
	return nil
}

// MissingInRow counts missing cells of row i across all columns.
func (t *Table) MissingInRow(i int) int {
	n := 0
	for _, c := range t.cols {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Select returns a new table holding the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{cols: make([]*Column, len(t.cols))}
	for i, c := range t.cols {
		out.cols[i] = c.subset(rows)
	}
	return out
}

// FloatColumns returns the float columns in order.
func (t *Table) FloatColumns() []*Column {
	var out []*Column
	for _, c := range t.cols {
		if c.Kind == Float {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{cols: make([]*Column, len(t.cols))}
	for i, c := range t.cols {
		out.cols[i] = c.Clone()
	}
	return out
}
