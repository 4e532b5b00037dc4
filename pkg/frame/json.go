package frame

import (
	"encoding/json"
	"fmt"
	"math"
)

// splitFrame is the "split" orientation used on disk:
// {"columns": [...], "index": [[name, ts], ...], "data": [[v, ...], ...]}.
type splitFrame struct {
	Columns []string     `json:"columns"`
	Index   [][2]string  `json:"index"`
	Data    [][]*float64 `json:"data"`
}

// MarshalJSON encodes the frame in split orientation with NaN as null.
func (f *Frame) MarshalJSON() ([]byte, error) {
	out := splitFrame{
		Columns: f.columns,
		Index:   make([][2]string, len(f.keys)),
		Data:    make([][]*float64, len(f.rows)),
	}

	if out.Columns == nil {
		out.Columns = []string{}
	}

	for i, k := range f.keys {
		out.Index[i] = [2]string{k.Name, k.Timestamp}
	}

	for i, row := range f.rows {
		cells := make([]*float64, len(row))

		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}

			cells[j] = &row[j]
		}

		out.Data[i] = cells
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a split orientation frame.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var in splitFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	if len(in.Index) != len(in.Data) {
		return fmt.Errorf("frame has %d index entries but %d data rows", len(in.Index), len(in.Data))
	}

	f.columns = in.Columns
	f.keys = make([]Key, len(in.Index))
	f.rows = make([][]float64, len(in.Data))

	for i, k := range in.Index {
		f.keys[i] = Key{Name: k[0], Timestamp: k[1]}
	}

	for i, cells := range in.Data {
		if len(cells) != len(in.Columns) {
			return fmt.Errorf("frame row %d has %d values, want %d", i, len(cells), len(in.Columns))
		}

		row := make([]float64, len(cells))

		for j, c := range cells {
			if c == nil {
				row[j] = math.NaN()
			} else {
				row[j] = *c
			}
		}

		f.rows[i] = row
	}

	return nil
}
