package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"automl/domain/core"
)

// Frame is a rectangular, column-major table of raw string cells with
// unique column names. Frames are treated as immutable: every
// transformation returns a new Frame sharing no cell slices with the input.
type Frame struct {
	columns []string
	index   map[string]int
	cells   [][]string
	nrows   int
}

// NewFrame builds a frame from a header and row-major records.
func NewFrame(columns []string, rows [][]string) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, core.NewDataError("duplicate column name %q", name)
		}
		index[name] = i
	}

	cells := make([][]string, len(columns))
	for c := range cells {
		cells[c] = make([]string, len(rows))
	}
	for r, row := range rows {
		if len(row) > len(columns) {
			return nil, core.NewDataError("row %d has %d cells, header has %d columns", r+1, len(row), len(columns))
		}
		for c := range columns {
			if c < len(row) {
				cells[c][r] = row[c]
			}
		}
	}

	return &Frame{
		columns: append([]string(nil), columns...),
		index:   index,
		cells:   cells,
		nrows:   len(rows),
	}, nil
}

// FromRecord builds a one-row frame, used for single-record prediction.
func FromRecord(record map[string]string) *Frame {
	names := make([]string, 0, len(record))
	for k := range record {
		names = append(names, k)
	}
	sort.Strings(names)
	row := make([]string, len(names))
	for i, k := range names {
		row[i] = record[k]
	}
	f, _ := NewFrame(names, [][]string{row})
	return f
}

func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }
func (f *Frame) NumRows() int      { return f.nrows }
func (f *Frame) NumColumns() int   { return len(f.columns) }
func (f *Frame) Empty() bool       { return f == nil || f.nrows == 0 || len(f.columns) == 0 }

func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the cells of one column. The slice must not be modified.
func (f *Frame) Column(name string) ([]string, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cells[i], true
}

// Drop returns a frame without the named columns; unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Frame{index: map[string]int{}, nrows: f.nrows}
	for i, name := range f.columns {
		if skip[name] {
			continue
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, name)
		out.cells = append(out.cells, append([]string(nil), f.cells[i]...))
	}
	return out
}

// Rename applies a column mapping. Names mapping to the empty string or
// "drop" are removed. Collisions after renaming are a DataError.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	out := &Frame{index: map[string]int{}, nrows: f.nrows}
	for i, name := range f.columns {
		target := name
		if m, ok := mapping[name]; ok {
			target = m
		}
		if target == "" || target == "drop" {
			continue
		}
		if _, dup := out.index[target]; dup {
			return nil, core.NewDataError("duplicate column name %q after renaming", target)
		}
		out.index[target] = len(out.columns)
		out.columns = append(out.columns, target)
		out.cells = append(out.cells, append([]string(nil), f.cells[i]...))
	}
	return out, nil
}

// SelectRows returns the rows at the given positions, in order.
func (f *Frame) SelectRows(rows []int) *Frame {
	out := &Frame{
		columns: append([]string(nil), f.columns...),
		index:   make(map[string]int, len(f.columns)),
		cells:   make([][]string, len(f.columns)),
		nrows:   len(rows),
	}
	for i, name := range f.columns {
		out.index[name] = i
		col := make([]string, len(rows))
		for j, r := range rows {
			col[j] = f.cells[i][r]
		}
		out.cells[i] = col
	}
	return out
}

// Row returns one record as a name to value map.
func (f *Frame) Row(r int) map[string]string {
	rec := make(map[string]string, len(f.columns))
	for i, name := range f.columns {
		rec[name] = f.cells[i][r]
	}
	return rec
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d rows x %d columns)", f.nrows, len(f.columns))
}

// IsMissing reports whether a raw cell counts as a missing value. Cells
// that parse to a non-finite number (inf, -Infinity, 1e999) are missing too.
func IsMissing(cell string) bool {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null", "none", "n/a":
		return true
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return false
	}
	return math.IsInf(v, 0) || math.IsNaN(v)
}

// ParseNumber parses a non-missing cell as a finite float64. Underflow
// parses as zero.
func ParseNumber(cell string) (float64, bool) {
	if IsMissing(cell) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}
