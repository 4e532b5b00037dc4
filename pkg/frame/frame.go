// Package frame is the tabular companion of a timing tree: one row per
// node and sample, keyed by node name and sample timestamp.
package frame

import (
	"math"
)

// Key identifies a frame row.
type Key struct {
	Name      string
	Timestamp string
}

// Frame holds rows of float values under named columns. NaN marks a value
// that was not available for a row, e.g. a column introduced by a later
// sample. Keys need not be unique: a bare node name may occur in several
// branches of the same tree.
type Frame struct {
	columns []string
	keys    []Key
	rows    [][]float64
}

// New creates an empty frame with the given columns.
func New(columns []string) *Frame {
	return &Frame{columns: append([]string(nil), columns...)}
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.keys)
}

// Append adds a row. Missing trailing values are filled with NaN and
// extra values are ignored.
func (f *Frame) Append(key Key, values []float64) {
	row := make([]float64, len(f.columns))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = math.NaN()
		}
	}

	f.keys = append(f.keys, key)
	f.rows = append(f.rows, row)
}

// Key returns the key of row i.
func (f *Frame) Key(i int) Key {
	return f.keys[i]
}

// Keys returns all row keys in order.
func (f *Frame) Keys() []Key {
	return append([]Key(nil), f.keys...)
}

// Row returns a copy of the values of row i.
func (f *Frame) Row(i int) []float64 {
	return append([]float64(nil), f.rows[i]...)
}

// ColumnIndex returns the position of a column or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}

	return -1
}

// Value returns the value at row i in the named column. It reports false
// if the column does not exist.
func (f *Frame) Value(i int, column string) (float64, bool) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return 0, false
	}

	return f.rows[i][idx], true
}

// Lookup returns the first row index with the given key, or -1.
func (f *Frame) Lookup(key Key) int {
	for i, k := range f.keys {
		if k == key {
			return i
		}
	}

	return -1
}

// Timestamps returns the distinct sample timestamps in first-seen order.
func (f *Frame) Timestamps() []string {
	seen := make(map[string]struct{}, 4)

	var out []string

	for _, k := range f.keys {
		if _, ok := seen[k.Timestamp]; ok {
			continue
		}

		seen[k.Timestamp] = struct{}{}
		out = append(out, k.Timestamp)
	}

	return out
}

// Realign extends the frame to the union of its columns and the given
// ones. New columns are appended in the given order and filled with NaN.
func (f *Frame) Realign(columns []string) {
	var added []string

	for _, c := range columns {
		if f.ColumnIndex(c) < 0 && !contains(added, c) {
			added = append(added, c)
		}
	}

	if len(added) == 0 {
		return
	}

	f.columns = append(f.columns, added...)

	for i, row := range f.rows {
		for range added {
			row = append(row, math.NaN())
		}

		f.rows[i] = row
	}
}

// DropTimestamp removes all rows of one sample and returns how many were
// removed.
func (f *Frame) DropTimestamp(ts string) int {
	keys := f.keys[:0]
	rows := f.rows[:0]
	dropped := 0

	for i, k := range f.keys {
		if k.Timestamp == ts {
			dropped++

			continue
		}

		keys = append(keys, k)
		rows = append(rows, f.rows[i])
	}

	f.keys = keys
	f.rows = rows

	return dropped
}

// Merge realigns f onto the union of both column sets, removes rows for
// the samples present in other and appends other's rows mapped by column
// name.
func (f *Frame) Merge(other *Frame) {
	f.Realign(other.columns)

	for _, ts := range other.Timestamps() {
		f.DropTimestamp(ts)
	}

	idx := make([]int, len(other.columns))
	for i, c := range other.columns {
		idx[i] = f.ColumnIndex(c)
	}

	for i, k := range other.keys {
		row := make([]float64, len(f.columns))
		for j := range row {
			row[j] = math.NaN()
		}

		for j, v := range other.rows[i] {
			row[idx[j]] = v
		}

		f.keys = append(f.keys, k)
		f.rows = append(f.rows, row)
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		columns: append([]string(nil), f.columns...),
		keys:    append([]Key(nil), f.keys...),
		rows:    make([][]float64, len(f.rows)),
	}

	for i, r := range f.rows {
		out.rows[i] = append([]float64(nil), r...)
	}

	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
