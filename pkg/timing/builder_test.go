package timing

import (
	"testing"

	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	root, data := Build(logtabletest.Table(logtabletest.MainTable()), "2023-01-10 12:03:29")

	assert.Equal(t, RootName, root.Name)
	assert.Empty(t, root.Ancestry)
	require.Len(t, root.Children, 1)

	total := root.Children[0]
	assert.Equal(t, []string{"root"}, total.Ancestry)
	require.Len(t, total.Children, 2)
	assert.Equal(t, "integrate_nh", total.Children[0].Name)
	assert.Equal(t, "physics", total.Children[1].Name)

	nh := total.Children[0]
	require.Len(t, nh.Children, 2)
	assert.Equal(t, []string{"nh_solve", "nh_hdiff"}, []string{nh.Children[0].Name, nh.Children[1].Name})

	_, ok := root.Consistent()
	assert.True(t, ok)

	assert.Equal(t, 7, data.Len())
	assert.Equal(t, logtabletest.Columns, data.Columns())

	i := data.Lookup(frame.Key{Name: "nh_solve.edgecomp", Timestamp: "2023-01-10 12:03:29"})
	require.Equal(t, 3, i)

	v, ok := data.Value(i, "total max (s)")
	require.True(t, ok)
	assert.InDelta(t, 30.75, v, 1e-9)
}

func TestBuild_MalformedIndentDoesNotPanic(t *testing.T) {
	table := &logtable.Table{
		Columns: []string{"a"},
		Rows: []logtable.Row{
			{Name: "deep", Indent: 3, Values: []float64{1}},
			{Name: "next", Indent: 5, Values: []float64{2}},
		},
	}

	root, data := Build(table, "t")

	assert.Equal(t, "root>deep", root.FindByName("deep").Path())
	assert.Equal(t, "root>deep>next", root.FindByName("next").Path())
	assert.Equal(t, 2, data.Len())
}

func TestBuild_EmptyTable(t *testing.T) {
	root, data := Build(&logtable.Table{}, "t")

	assert.Empty(t, root.Children)
	assert.Equal(t, 0, data.Len())
}
