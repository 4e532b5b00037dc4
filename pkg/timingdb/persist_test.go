package timingdb

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, []string{
		"db/icon_tree_0.json", "db/icon_data_0.json",
		"db/icon_tree_1.json", "db/icon_data_1.json",
		"db/icon_meta.json",
	}, ArtifactNames("db/icon", 2))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "nested", "icon")

	db := sample("2023-01-10 12:03:29", "rev1",
		logtabletest.MainTable(), logtabletest.Without(logtabletest.MainTable(), "physics", "radiation"))
	require.NoError(t, db.Add(sample("2023-01-11 12:03:29", "rev2",
		scaled(logtabletest.MainTable(), 2), logtabletest.MainTable()), MergeGrow))
	db.Data[0].Realign([]string{"extra"})

	require.NoError(t, db.Save(base, nil))

	for _, name := range ArtifactNames(base, 2) {
		assert.FileExists(t, name)
	}

	assert.True(t, Exists(base))

	got, err := LoadFile(ctx, base)
	require.NoError(t, err)

	require.Equal(t, db.NTables(), got.NTables())
	assert.Equal(t, db.Meta.Fields, got.Meta.Fields)
	assert.Equal(t, db.Meta.Entries, got.Meta.Entries)

	for i := range db.Roots {
		assert.Equal(t, db.Roots[i].Names(), got.Roots[i].Names())

		for j, n := range db.Roots[i].Descendants() {
			assert.Equal(t, n.Ancestry, got.Roots[i].Descendants()[j].Ancestry)
		}

		assert.Equal(t, db.Data[i].Columns(), got.Data[i].Columns())
		assert.Equal(t, db.Data[i].Keys(), got.Data[i].Keys())

		for r := 0; r < db.Data[i].Len(); r++ {
			want, have := db.Data[i].Row(r), got.Data[i].Row(r)
			require.Len(t, have, len(want))

			for c := range want {
				if math.IsNaN(want[c]) {
					assert.True(t, math.IsNaN(have[c]))
				} else {
					assert.InDelta(t, want[c], have[c], 1e-9)
				}
			}
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, Exists(filepath.Join(t.TempDir(), "absent")))
}

func TestLoad_MissingTable(t *testing.T) {
	base := filepath.Join(t.TempDir(), "icon")
	require.NoError(t, sample("t1", "r1", logtabletest.MainTable()).Save(base, nil))
	require.NoError(t, os.Remove(DataName(base, 0)))

	_, err := LoadFile(context.Background(), base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing artifact")
}

func TestLoad_InconsistentAncestry(t *testing.T) {
	base := filepath.Join(t.TempDir(), "icon")
	require.NoError(t, sample("t1", "r1", logtabletest.MainTable()).Save(base, nil))

	tree := `{"name":"root","ancestry":[],"children":[
		{"name":"total","ancestry":["elsewhere"],"children":[]}
	]}`
	require.NoError(t, os.WriteFile(TreeName(base, 0), []byte(tree), 0o600))

	_, err := LoadFile(context.Background(), base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elsewhere>total")
}

func TestLoad_LegacyScalarMeta(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "icon")
	require.NoError(t, sample("2023-01-10 12:03:29", "rev1", logtabletest.MainTable()).Save(base, nil))

	legacy := `{
		"start_time": "2023-01-10 12:00:05",
		"finish_time": "2023-01-10 12:03:29",
		"revision": "rev1",
		"branch": "main",
		"n_tables": 1,
		"entries": [7]
	}`
	require.NoError(t, os.WriteFile(MetaName(base), []byte(legacy), 0o600))

	got, err := Load(context.Background(), storage.NewLocalReader(dir), "icon")
	require.NoError(t, err)

	assert.Equal(t, []string{"rev1"}, got.Meta.Values(KeyRevision))
	assert.True(t, got.HasSample("2023-01-10 12:03:29", "rev1"))

	require.NoError(t, got.Add(sample("2023-01-11 12:03:29", "rev2", logtabletest.MainTable()), MergeGrow))
	assert.Equal(t, []string{"rev1", "rev2"}, got.Meta.Values(KeyRevision))
}
