// Package report renders timing trees and series as plain text and
// markdown.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/timing"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

// TreeText renders the region tree with the latest value of column for
// every region, one region per line, indented by depth.
func TreeText(root *timing.Node, data *frame.Frame, column string) string {
	var sb strings.Builder

	ts := latestTimestamp(data)
	width := nameWidth(root)

	root.Walk(func(n *timing.Node) bool {
		if n == root {
			return true
		}

		indent := strings.Repeat("  ", n.Depth()-1)
		label := indent + n.Name

		fmt.Fprintf(&sb, "%-*s  %12s", width, label, formatValue(valueOf(data, n, ts, column)))

		if share, ok := shareOfParent(root, data, n, ts, column); ok {
			fmt.Fprintf(&sb, "  %5.1f%%", share)
		}

		sb.WriteString("\n")

		return true
	})

	return sb.String()
}

// TreeMarkdown renders an overview of one table and its regions.
func TreeMarkdown(db *timingdb.Database, table int, column string) (string, error) {
	root, data, err := db.Table(table)
	if err != nil {
		return "", err
	}

	if data.ColumnIndex(column) < 0 {
		return "", fmt.Errorf("table %d has no column %q: %w", table, column, timingdb.ErrUnknownColumn)
	}

	var sb strings.Builder

	sb.Grow(4096)

	ts := latestTimestamp(data)

	fmt.Fprintf(&sb, "# Timing Tree: table %d\n\n", table)

	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(&sb, "| Samples | %d |\n", db.NSamples())

	if ts != "" {
		fmt.Fprintf(&sb, "| Latest Sample | %s |\n", ts)
	}

	if rev := db.Meta.Latest(timingdb.KeyRevision); rev != "" {
		fmt.Fprintf(&sb, "| Revision | `%s` |\n", rev)
	}

	if branch := db.Meta.Latest(timingdb.KeyBranch); branch != "" {
		fmt.Fprintf(&sb, "| Branch | %s |\n", branch)
	}

	fmt.Fprintf(&sb, "| Regions | %d |\n", len(root.Descendants()))
	fmt.Fprintf(&sb, "| Column | %s |\n", column)
	sb.WriteString("\n")

	sb.WriteString("## Regions\n\n")
	sb.WriteString("| Region | Value | Share |\n")
	sb.WriteString("|---|---:|---:|\n")

	for _, n := range root.Descendants() {
		share := "-"
		if s, ok := shareOfParent(root, data, n, ts, column); ok {
			share = fmt.Sprintf("%.1f%%", s)
		}

		fmt.Fprintf(&sb, "| %s%s | %s | %s |\n",
			strings.Repeat("&nbsp;&nbsp;", n.Depth()-1), n.Name,
			formatValue(valueOf(data, n, ts, column)), share)
	}

	return sb.String(), nil
}

// SeriesMarkdown renders a timer history with its summary statistics.
func SeriesMarkdown(
	timer, column string,
	points []timingdb.SeriesPoint,
	summary timingdb.SeriesSummary,
) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Timer Series: %s\n\n", timer)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(&sb, "| Column | %s |\n", column)
	fmt.Fprintf(&sb, "| Samples | %d |\n", summary.Count)

	if summary.Count > 0 {
		fmt.Fprintf(&sb, "| Min | %s |\n", formatSeconds(summary.Min))
		fmt.Fprintf(&sb, "| Max | %s |\n", formatSeconds(summary.Max))
		fmt.Fprintf(&sb, "| Mean | %s |\n", formatSeconds(summary.Mean))
		fmt.Fprintf(&sb, "| P50 | %s |\n", formatSeconds(summary.P50))
		fmt.Fprintf(&sb, "| P95 | %s |\n", formatSeconds(summary.P95))
		fmt.Fprintf(&sb, "| Std Dev | %s |\n", formatSeconds(summary.StdDev))
		fmt.Fprintf(&sb, "| Last | %s |\n", formatSeconds(summary.Last))
	}

	if len(points) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Samples\n\n")
	sb.WriteString("| # | Finish Time | Revision | Value | Change |\n")
	sb.WriteString("|---|---|---|---:|---:|\n")

	for i, p := range points {
		change := "-"
		if i > 0 && points[i-1].Value != 0 {
			change = fmt.Sprintf("%+.1f%%", (p.Value/points[i-1].Value-1)*100)
		}

		fmt.Fprintf(&sb, "| %d | %s | `%s` | %s | %s |\n",
			i+1, p.Timestamp, p.Revision, formatSeconds(p.Value), change)
	}

	return sb.String()
}

// DiffText lists the topmost regions of a difference set, each with the
// number of regions in its subtree.
func DiffText(set *timing.NodeSet) string {
	if set == nil || set.Len() == 0 {
		return "no differences\n"
	}

	var sb strings.Builder

	for _, n := range set.Nodes() {
		size := len(n.Descendants()) + 1

		noun := "regions"
		if size == 1 {
			noun = "region"
		}

		fmt.Fprintf(&sb, "+ %s (%d %s)\n", n.Path(), size, noun)
	}

	return sb.String()
}

func latestTimestamp(data *frame.Frame) string {
	ts := data.Timestamps()
	if len(ts) == 0 {
		return ""
	}

	return ts[len(ts)-1]
}

func valueOf(data *frame.Frame, n *timing.Node, ts, column string) float64 {
	i := data.Lookup(frame.Key{Name: n.Name, Timestamp: ts})
	if i < 0 {
		return math.NaN()
	}

	v, ok := data.Value(i, column)
	if !ok {
		return math.NaN()
	}

	return v
}

// shareOfParent is n's value as a percentage of its parent's. Top-level
// regions have no share.
func shareOfParent(root *timing.Node, data *frame.Frame, n *timing.Node, ts, column string) (float64, bool) {
	if n.Depth() <= 1 {
		return 0, false
	}

	parent := root.FindByPath(strings.Join(n.Ancestry, timing.PathSeparator))
	if parent == nil {
		return 0, false
	}

	v := valueOf(data, n, ts, column)
	pv := valueOf(data, parent, ts, column)

	if math.IsNaN(v) || math.IsNaN(pv) || pv == 0 {
		return 0, false
	}

	return v / pv * 100, true
}

func nameWidth(root *timing.Node) int {
	width := 0

	for _, n := range root.Descendants() {
		if w := 2*(n.Depth()-1) + len(n.Name); w > width {
			width = w
		}
	}

	return width
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	return formatSeconds(v)
}

// formatSeconds formats a duration in seconds with millisecond precision.
func formatSeconds(s float64) string {
	if math.IsNaN(s) {
		return "-"
	}

	sign := ""
	if s < 0 {
		sign = "-"
		s = -s
	}

	ms := int64(math.Round(s * 1000))
	hours := ms / 3_600_000
	minutes := ms / 60_000 % 60
	rest := float64(ms%60_000) / 1000

	switch {
	case hours > 0:
		return fmt.Sprintf("%s%dh %dm %.3fs", sign, hours, minutes, rest)
	case minutes > 0:
		return fmt.Sprintf("%s%dm %.3fs", sign, minutes, rest)
	default:
		return fmt.Sprintf("%s%.3fs", sign, rest)
	}
}
