package logtable_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(minRows int) *logtable.Extractor {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	opts := logtable.DefaultOptions()
	opts.MinRows = minRows

	return logtable.NewExtractor(log, opts)
}

func TestExtract_MainTable(t *testing.T) {
	tables, meta, err := newExtractor(5).Extract(logtabletest.Render(logtabletest.Default()))
	require.NoError(t, err)
	require.Len(t, tables, 1)

	tbl := tables[0]
	assert.Equal(t, logtabletest.Columns, tbl.Columns)
	assert.Equal(t, []string{
		"total", "integrate_nh", "nh_solve", "nh_solve.edgecomp",
		"nh_hdiff", "physics", "radiation",
	}, tbl.Names())
	assert.Equal(t, []int{0, 1, 2, 3, 2, 1, 2}, tbl.Indents())

	total := tbl.Column("total max (s)")
	require.Len(t, total, 7)
	assert.InDelta(t, 204.163, total[0], 1e-9)
	assert.InDelta(t, 30.75, total[3], 1e-9)

	tmin := tbl.Column("t_min")
	assert.InDelta(t, 60.0, tmin[0], 1e-9)

	assert.Nil(t, tbl.Column("missing"))

	assert.Equal(t, "2023-01-10 12:00:05", meta.StartTime)
	assert.Equal(t, "2023-01-10 12:03:29", meta.FinishTime)
	assert.Equal(t, "a1b2c3d", meta.Revision)
	assert.Equal(t, "main", meta.Branch)
	assert.Equal(t, 1, meta.NTables)
	assert.Equal(t, []int{7}, meta.Entries)
}

func TestExtract_EntriesMatchTables(t *testing.T) {
	run := logtabletest.Default()
	run.Tables = [][]logtabletest.Region{
		logtabletest.MainTable(),
		logtabletest.Without(logtabletest.MainTable(), "radiation"),
		logtabletest.MainTable()[:3],
	}

	tests := []struct {
		name    string
		minRows int
		want    []int
	}{
		{name: "noise table dropped", minRows: 5, want: []int{7, 6}},
		{name: "keep everything", minRows: 0, want: []int{7, 6, 3}},
		{name: "strict threshold", minRows: 6, want: []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, meta, err := newExtractor(tt.minRows).Extract(logtabletest.Render(run))
			require.NoError(t, err)

			assert.Equal(t, len(tables), meta.NTables)
			assert.Equal(t, tt.want, meta.Entries)

			for i, tbl := range tables {
				assert.Len(t, tbl.Rows, meta.Entries[i])
			}
		})
	}
}

func TestExtract_RowsBeforeHeaderIgnored(t *testing.T) {
	text := logtabletest.Row(logtabletest.Region{Name: "stray", Total: 1}) + "\n" +
		logtabletest.Render(logtabletest.Default())

	tables, _, err := newExtractor(0).Extract(text)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "total", tables[0].Rows[0].Name)
}

func TestExtract_ColumnCountMismatch(t *testing.T) {
	text := logtabletest.Render(logtabletest.Default())
	bad := " broken  1  2  3  4  5  6  7"
	text = strings.Replace(text, logtabletest.Row(logtabletest.MainTable()[4]),
		logtabletest.Row(logtabletest.MainTable()[4])+"\n"+bad, 1)

	tables, meta, err := newExtractor(5).Extract(text)
	require.Error(t, err)
	assert.Nil(t, tables)
	assert.Nil(t, meta)

	var fe *logtable.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, bad, fe.Row)
	assert.Contains(t, fe.Header, "total max (s)")
	assert.Contains(t, fe.Error(), "broken")
}

func TestExtract_MetadataErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name: "no dates",
			mutate: func(s string) string {
				s = strings.ReplaceAll(s, "Tue Jan 10 12:00:05 CET 2023", "")
				return strings.ReplaceAll(s, "Tue Jan 10 12:03:29 CET 2023", "")
			},
			wantMsg: "date",
		},
		{
			name: "one date",
			mutate: func(s string) string {
				return strings.ReplaceAll(s, "Tue Jan 10 12:03:29 CET 2023", "")
			},
			wantMsg: "date",
		},
		{
			name: "no revision",
			mutate: func(s string) string {
				return strings.ReplaceAll(s, "Revision :", "Rev")
			},
			wantMsg: "Revision",
		},
		{
			name: "no branch",
			mutate: func(s string) string {
				return strings.ReplaceAll(s, "Branch   :", "Br")
			},
			wantMsg: "Branch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.mutate(logtabletest.Render(logtabletest.Default()))

			_, _, err := newExtractor(5).Extract(text)
			require.Error(t, err)

			var fe *logtable.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe.Msg, tt.wantMsg)
		})
	}
}

func TestExtract_FirstMatchingDateGrammarDecides(t *testing.T) {
	run := logtabletest.Default()
	run.Start = "Tue Jan 10 12:00:05 CET 2023\n 2023-03-14 09:00:00"
	run.Finish = "2023-03-14 10:00:00"

	_, meta, err := newExtractor(5).Extract(logtabletest.Render(run))
	require.Error(t, err)
	assert.Nil(t, meta)

	var fe *logtable.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Msg, "only one en date")
}

func TestExtract_DateLocales(t *testing.T) {
	tests := []struct {
		name       string
		dates      []string
		wantStart  string
		wantFinish string
	}{
		{
			name:       "english",
			dates:      []string{"Tue Jan 10 12:00:05 CET 2023", "Tue Jan 10 12:03:29 CET 2023"},
			wantStart:  "2023-01-10 12:00:05",
			wantFinish: "2023-01-10 12:03:29",
		},
		{
			name:       "english padded day",
			dates:      []string{"Thu Mar  2 08:00:00 UTC 2023", "Thu Mar  2 09:30:00 UTC 2023"},
			wantStart:  "2023-03-02 08:00:00",
			wantFinish: "2023-03-02 09:30:00",
		},
		{
			name:       "german",
			dates:      []string{"Di 10. Jan 12:00:05 CET 2023", "Mi 11. Okt 01:02:03 CEST 2023"},
			wantStart:  "2023-01-10 12:00:05",
			wantFinish: "2023-10-11 01:02:03",
		},
		{
			name:       "iso",
			dates:      []string{"2023-05-01T10:00:00", "2023-05-01 11:00:00"},
			wantStart:  "2023-05-01 10:00:00",
			wantFinish: "2023-05-01 11:00:00",
		},
		{
			name: "leading extra date",
			dates: []string{
				"Mon Jan  9 23:59:00 CET 2023",
				"Tue Jan 10 12:00:05 CET 2023",
				"Tue Jan 10 12:03:29 CET 2023",
			},
			wantStart:  "2023-01-10 12:00:05",
			wantFinish: "2023-01-10 12:03:29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := logtabletest.Default()
			run.Start = strings.Join(tt.dates[:len(tt.dates)-1], "\n")
			run.Finish = tt.dates[len(tt.dates)-1]

			_, meta, err := newExtractor(5).Extract(logtabletest.Render(run))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, meta.StartTime)
			assert.Equal(t, tt.wantFinish, meta.FinishTime)
		})
	}
}

func TestExtractFile_Latin1(t *testing.T) {
	// 0xE4 is a lone "ä" in ISO-8859-1 and invalid as UTF-8.
	text := strings.Replace(logtabletest.Render(logtabletest.Default()),
		"Model run starting", "Model run starting \xe4\xff", 1)

	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	tables, meta, err := newExtractor(5).ExtractFile(path)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
	assert.Equal(t, "a1b2c3d", meta.Revision)
}

func TestExtractFile_FormatErrorNamesFile(t *testing.T) {
	run := logtabletest.Default()
	run.Revision = ""
	text := strings.Replace(logtabletest.Render(run), "Revision :", "", 1)

	path := filepath.Join(t.TempDir(), "bad.log")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	_, _, err := newExtractor(5).ExtractFile(path)

	var fe *logtable.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, path, fe.File)
	assert.True(t, strings.HasPrefix(fe.Error(), path+":"))
}

func TestExtractFile_Missing(t *testing.T) {
	_, _, err := newExtractor(5).ExtractFile(filepath.Join(t.TempDir(), "nope.log"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExtract_Testdata(t *testing.T) {
	tables, meta, err := newExtractor(5).ExtractFile(filepath.Join("testdata", "icon_timer.log"))
	require.NoError(t, err)

	require.Equal(t, 2, meta.NTables)
	assert.Equal(t, []int{8, 6}, meta.Entries)
	assert.Equal(t, "release-2.6.6", meta.Branch)
	assert.Equal(t, "3f2c9e1", meta.Revision)
	assert.Equal(t, "2023-03-14 09:15:02", meta.StartTime)
	assert.Equal(t, "2023-03-14 09:48:40", meta.FinishTime)

	assert.Equal(t, []int{0, 1, 2, 3, 3, 2, 1, 1}, tables[0].Indents())
	assert.InDelta(t, 2018.4, tables[0].Column("total max (s)")[0], 1e-9)
}
