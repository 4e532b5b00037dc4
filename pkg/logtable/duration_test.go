package logtable

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		tok    string
		want   float64
		wantOK bool
	}{
		{tok: "1h2m3s", want: 3723, wantOK: true},
		{tok: "2m3s", want: 123, wantOK: true},
		{tok: "45s", want: 45, wantOK: true},
		{tok: "1.5s", want: 1.5, wantOK: true},
		{tok: "3m24.5s", want: 204.5, wantOK: true},
		{tok: "7", want: 7, wantOK: true},
		{tok: "204.163", want: 204.163, wantOK: true},
		{tok: "-1", want: -1, wantOK: true},
		{tok: "1e3", want: 1000, wantOK: true},
		{tok: "NaN", wantOK: false},
		{tok: "Inf", wantOK: false},
		{tok: "0x10", wantOK: false},
		{tok: "abc", wantOK: false},
		{tok: "1h2s", wantOK: false},
		{tok: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			got, ok := ParseSeconds(tt.tok)
			assert.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseDuration_Unparseable(t *testing.T) {
	log, hook := test.NewNullLogger()

	got := ParseDuration(log, "n/a")
	assert.Equal(t, 0.0, got)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "n/a", hook.LastEntry().Data["token"])
}

func TestParseDuration_NoWarningOnSuccess(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetOutput(io.Discard)

	assert.Equal(t, 3723.0, ParseDuration(log, "1h2m3s"))
	assert.Empty(t, hook.Entries)
}
