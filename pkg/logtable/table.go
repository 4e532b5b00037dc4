package logtable

import "fmt"

// Row is one line of a timer table.
type Row struct {
	Name   string
	Indent int
	// Values are aligned with the owning Table's Columns, in seconds for
	// duration-like columns.
	Values []float64
}

// Table is one timer report found in a log.
type Table struct {
	// Columns are the numeric column labels, excluding the name column.
	Columns []string
	Rows    []Row
	Header  string
	// Line is the 1-based line number of the header in the log.
	Line int
}

// Names returns the row names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Name
	}

	return out
}

// Indents returns the row indentation levels in order.
func (t *Table) Indents() []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Indent
	}

	return out
}

// Column returns the values of the named column, or nil if the table has
// no such column.
func (t *Table) Column(name string) []float64 {
	idx := -1

	for i, c := range t.Columns {
		if c == name {
			idx = i

			break
		}
	}

	if idx < 0 {
		return nil
	}

	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}

	return out
}

// FormatError reports a violation of the timer report format. It is fatal
// for the whole log.
type FormatError struct {
	File   string
	Line   int
	Msg    string
	Header string
	Row    string
}

func (e *FormatError) Error() string {
	file := e.File
	if file == "" {
		file = "<log>"
	}

	msg := fmt.Sprintf("%s:%d: %s", file, e.Line, e.Msg)
	if e.Header != "" {
		msg += fmt.Sprintf("\n  header: %q", e.Header)
	}

	if e.Row != "" {
		msg += fmt.Sprintf("\n  row:    %q", e.Row)
	}

	return msg
}
