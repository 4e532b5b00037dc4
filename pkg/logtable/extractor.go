package logtable

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

const (
	// DefaultMinRows drops tables with this many rows or fewer.
	DefaultMinRows = 5

	// DefaultIndentWidth is the number of characters per nesting level.
	DefaultIndentWidth = 3

	// DefaultIndentMarker is the token printed in front of nested names.
	DefaultIndentMarker = "L"
)

// DefaultHeaderLabels are the labels a header line must carry.
var DefaultHeaderLabels = []string{"name", "# calls"}

// Options tunes how timer tables are recognised.
type Options struct {
	// MinRows drops noise tables with MinRows rows or fewer. Zero keeps
	// every table.
	MinRows      int
	IndentWidth  int
	IndentMarker string
	HeaderLabels []string
}

// DefaultOptions returns the options matching the model's timer report.
func DefaultOptions() Options {
	return Options{
		MinRows:      DefaultMinRows,
		IndentWidth:  DefaultIndentWidth,
		IndentMarker: DefaultIndentMarker,
		HeaderLabels: DefaultHeaderLabels,
	}
}

// Extractor turns the text of a model log into timer tables and run
// metadata.
type Extractor struct {
	log  logrus.FieldLogger
	opts Options
	cls  classifier
}

// NewExtractor creates an Extractor. Zero-valued option fields fall back
// to their defaults, except MinRows.
func NewExtractor(log logrus.FieldLogger, opts Options) *Extractor {
	if opts.IndentWidth <= 0 {
		opts.IndentWidth = DefaultIndentWidth
	}

	if opts.IndentMarker == "" {
		opts.IndentMarker = DefaultIndentMarker
	}

	if len(opts.HeaderLabels) == 0 {
		opts.HeaderLabels = DefaultHeaderLabels
	}

	return &Extractor{
		log:  log.WithField("component", "logtable"),
		opts: opts,
		cls: classifier{
			labels: opts.HeaderLabels,
			marker: opts.IndentMarker,
		},
	}
}

// ExtractFile reads a log from disk and extracts it. The file is decoded
// as ISO-8859-1 so that stray non-UTF-8 bytes never fail the parse.
func (e *Extractor) ExtractFile(path string) ([]*Table, *RunMeta, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // caller-supplied log path
	if err != nil {
		return nil, nil, fmt.Errorf("reading log: %w", err)
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding log: %w", err)
	}

	tables, meta, err := e.Extract(string(text))
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.File = path
		}

		return nil, nil, err
	}

	return tables, meta, nil
}

// taggedLine is a retained line with its position in the log.
type taggedLine struct {
	kind lineKind
	num  int
	text string
}

// Extract parses the full text of one log.
func (e *Extractor) Extract(text string) ([]*Table, *RunMeta, error) {
	lines := e.retain(text)

	var (
		tables []*Table
		cur    *Table
		header []string
	)

	for _, l := range lines {
		switch l.kind {
		case lineHeader:
			header = headerTokens(l.text)
			cur = &Table{
				Columns: append([]string(nil), header[1:]...),
				Header:  l.text,
				Line:    l.num,
			}
			tables = append(tables, cur)
		case lineRow:
			if cur == nil {
				continue
			}

			row, err := e.parseRow(l, header)
			if err != nil {
				return nil, nil, err
			}

			cur.Rows = append(cur.Rows, row)
		}
	}

	tables = e.dropNoise(tables)

	meta, err := parseRunMeta(text)
	if err != nil {
		return nil, nil, err
	}

	meta.NTables = len(tables)

	meta.Entries = make([]int, len(tables))
	for i, t := range tables {
		meta.Entries[i] = len(t.Rows)
	}

	e.log.WithFields(logrus.Fields{
		"tables":   meta.NTables,
		"entries":  meta.Entries,
		"finish":   meta.FinishTime,
		"revision": meta.Revision,
	}).Debug("Extracted timer tables")

	return tables, meta, nil
}

// retain keeps the non-empty header and row lines.
func (e *Extractor) retain(text string) []taggedLine {
	var out []taggedLine

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	num := 0
	for sc.Scan() {
		num++

		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		kind := e.cls.classify(line)
		if kind == lineOther {
			continue
		}

		out = append(out, taggedLine{kind: kind, num: num, text: line})
	}

	return out
}

func (e *Extractor) parseRow(l taggedLine, header []string) (Row, error) {
	toks := e.cls.rowTokens(l.text)
	if len(toks) != len(header) {
		return Row{}, &FormatError{
			Line: l.num,
			Msg: fmt.Sprintf(
				"row has %d columns, header has %d", len(toks), len(header),
			),
			Header: strings.Join(header, " | "),
			Row:    l.text,
		}
	}

	values := make([]float64, len(toks)-1)
	for i, t := range toks[1:] {
		values[i] = ParseDuration(e.log, t)
	}

	return Row{
		Name:   toks[0],
		Indent: indentOf(l.text, e.opts.IndentWidth),
		Values: values,
	}, nil
}

func (e *Extractor) dropNoise(tables []*Table) []*Table {
	if e.opts.MinRows <= 0 {
		return tables
	}

	kept := tables[:0]
	for _, t := range tables {
		if len(t.Rows) <= e.opts.MinRows {
			e.log.WithFields(logrus.Fields{
				"line": t.Line,
				"rows": len(t.Rows),
			}).Debug("Dropping small table")

			continue
		}

		kept = append(kept, t)
	}

	return kept
}
