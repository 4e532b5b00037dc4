package logtable

import (
	"regexp"
	"strings"
	"unicode"
)

type lineKind int

const (
	lineOther lineKind = iota
	lineHeader
	lineRow
)

func (k lineKind) String() string {
	switch k {
	case lineHeader:
		return "header"
	case lineRow:
		return "row"
	default:
		return "other"
	}
}

const (
	minRowValues = 6
	maxRowValues = 20
)

// headerSplit separates header labels, which may themselves contain
// single spaces ("total max (s)").
var headerSplit = regexp.MustCompile(`\s{2,}`)

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// classifier decides whether a line is a table header, a table row or
// irrelevant text. It holds the format knobs from Options.
type classifier struct {
	labels []string
	marker string
}

func (c *classifier) classify(line string) lineKind {
	if c.isHeader(line) {
		return lineHeader
	}

	if c.isRow(line) {
		return lineRow
	}

	return lineOther
}

func (c *classifier) isHeader(line string) bool {
	labels := headerTokens(line)
	if len(labels) < 2 || labels[0] != "name" {
		return false
	}

	for _, want := range c.labels {
		found := false

		for _, l := range labels {
			if l == want {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func (c *classifier) isRow(line string) bool {
	toks := c.rowTokens(line)
	if len(toks) < 1+minRowValues || len(toks) > 1+maxRowValues {
		return false
	}

	if !isNameLike(toks[0]) {
		return false
	}

	for _, t := range toks[1:] {
		if _, ok := ParseSeconds(t); !ok {
			return false
		}
	}

	return true
}

// headerTokens splits a header line into its labels.
func headerTokens(line string) []string {
	parts := headerSplit.Split(strings.TrimSpace(line), -1)

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// rowTokens splits a row on spaces, strips rank brackets and drops empty
// tokens and the indentation marker.
func (c *classifier) rowTokens(line string) []string {
	fields := strings.Fields(line)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = bracketStripper.Replace(f)
		if f == "" || f == c.marker {
			continue
		}

		out = append(out, f)
	}

	return out
}

// indentOf counts whole indentation units in the leading whitespace.
func indentOf(line string, width int) int {
	n := 0

	for _, r := range line {
		if r != ' ' && r != '\t' {
			break
		}

		n++
	}

	return n / width
}

func isNameLike(tok string) bool {
	for i, r := range tok {
		if i == 0 && !(unicode.IsLetter(r) || r == '_') {
			return false
		}

		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}

		switch r {
		case '_', '.', '-', ':', '/', '(', ')':
		default:
			return false
		}
	}

	return tok != ""
}
