package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/timingtree/pkg/storage"
)

func TestLocalReader_ReadFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_meta.json"), []byte(`{}`), 0o600))

	reader := storage.NewLocalReader(dir)

	t.Run("relative name", func(t *testing.T) {
		data, err := reader.ReadFile(ctx, "db_meta.json")
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("absolute name", func(t *testing.T) {
		data, err := storage.NewLocalReader("/nonexistent").
			ReadFile(ctx, filepath.Join(dir, "db_meta.json"))
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("missing file returns nil nil", func(t *testing.T) {
		data, err := reader.ReadFile(ctx, "db_tree_0.json")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("directory is an error", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

		_, err := reader.ReadFile(ctx, "sub")
		assert.Error(t, err)
	})
}
