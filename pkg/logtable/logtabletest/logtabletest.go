// Package logtabletest renders synthetic model logs for tests.
package logtabletest

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/timingtree/pkg/logtable"
)

// Header is a timer report header carrying the default labels.
const Header = " name                       # calls  t_min   min rank  t_avg   t_max   max rank  " +
	"total min (s)  total min rank  total max (s)  total max rank  total avg (s)  # PEs"

// Columns are the numeric column names of Header.
var Columns = []string{
	"# calls", "t_min", "min rank", "t_avg", "t_max", "max rank",
	"total min (s)", "total min rank", "total max (s)", "total max rank",
	"total avg (s)", "# PEs",
}

// Region is one row of a rendered timer table.
type Region struct {
	Name   string
	Indent int
	Total  float64
}

// Run describes one rendered log.
type Run struct {
	Start    string
	Finish   string
	Revision string
	Branch   string
	Tables   [][]Region
}

// Default returns a run with one table shaped like the model's main timer
// report.
func Default() Run {
	return Run{
		Start:    "Tue Jan 10 12:00:05 CET 2023",
		Finish:   "Tue Jan 10 12:03:29 CET 2023",
		Revision: "a1b2c3d",
		Branch:   "main",
		Tables:   [][]Region{MainTable()},
	}
}

// MainTable is a seven row table whose deepest region is
// total>integrate_nh>nh_solve>nh_solve.edgecomp.
func MainTable() []Region {
	return []Region{
		{Name: "total", Indent: 0, Total: 204.163},
		{Name: "integrate_nh", Indent: 1, Total: 180.5},
		{Name: "nh_solve", Indent: 2, Total: 120.25},
		{Name: "nh_solve.edgecomp", Indent: 3, Total: 30.75},
		{Name: "nh_hdiff", Indent: 2, Total: 12},
		{Name: "physics", Indent: 1, Total: 20.5},
		{Name: "radiation", Indent: 2, Total: 8.125},
	}
}

// Without returns regions minus the named ones.
func Without(regions []Region, names ...string) []Region {
	out := make([]Region, 0, len(regions))

	for _, r := range regions {
		skip := false

		for _, n := range names {
			if r.Name == n {
				skip = true

				break
			}
		}

		if !skip {
			out = append(out, r)
		}
	}

	return out
}

// Render produces the log text.
func Render(r Run) string {
	var sb strings.Builder

	sb.WriteString(r.Start + "\n")
	sb.WriteString(" Model run starting\n")
	fmt.Fprintf(&sb, " Revision : %s\n", r.Revision)
	fmt.Fprintf(&sb, " Branch   : %s\n\n", r.Branch)

	for _, t := range r.Tables {
		sb.WriteString("\n")
		sb.WriteString(Header + "\n\n")

		for _, reg := range t {
			sb.WriteString(Row(reg) + "\n")
		}
	}

	sb.WriteString("\n Model run finished\n")
	sb.WriteString(r.Finish + "\n")

	return sb.String()
}

// Row renders a single table row.
func Row(reg Region) string {
	name := " " + reg.Name
	if reg.Indent > 0 {
		name = strings.Repeat(" ", 3*reg.Indent+1) + "L " + reg.Name
	}

	return fmt.Sprintf("%-28s 1  1m0s  [0]  1m0s  1m0s  [0]  %.3f [0] %.3f [0] %.3f  1",
		name, reg.Total, reg.Total, reg.Total)
}

// Table builds the extracted form of regions without going through text.
// Every column holds the region's Total.
func Table(regions []Region) *logtable.Table {
	t := &logtable.Table{Columns: append([]string(nil), Columns...), Header: Header}

	for _, reg := range regions {
		values := make([]float64, len(Columns))
		for i := range values {
			values[i] = reg.Total
		}

		t.Rows = append(t.Rows, logtable.Row{Name: reg.Name, Indent: reg.Indent, Values: values})
	}

	return t
}
