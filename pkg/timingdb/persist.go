package timingdb

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/fsutil"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/ethpandaops/timingtree/pkg/timing"
)

// MetaName is the metadata artifact of the database at base.
func MetaName(base string) string {
	return base + "_meta.json"
}

// TreeName is the tree artifact of table i.
func TreeName(base string, i int) string {
	return fmt.Sprintf("%s_tree_%d.json", base, i)
}

// DataName is the frame artifact of table i.
func DataName(base string, i int) string {
	return fmt.Sprintf("%s_data_%d.json", base, i)
}

// ArtifactNames lists every artifact of a database with nTables tables,
// metadata last.
func ArtifactNames(base string, nTables int) []string {
	out := make([]string, 0, 2*nTables+1)
	for i := 0; i < nTables; i++ {
		out = append(out, TreeName(base, i), DataName(base, i))
	}

	return append(out, MetaName(base))
}

// Save writes all artifacts below base. Each file is replaced atomically
// and metadata is written last, so a reader never sees metadata that
// references tables which are not yet written. The set of files as a
// whole is not replaced atomically; concurrent writers must hold the
// store lock.
func (d *Database) Save(base string, owner *fsutil.OwnerConfig) error {
	if dir := filepath.Dir(base); dir != "." {
		if err := fsutil.MkdirAll(dir, 0o755, owner); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	for i := range d.Roots {
		if err := writeJSON(TreeName(base, i), d.Roots[i], owner); err != nil {
			return err
		}

		if err := writeJSON(DataName(base, i), d.Data[i], owner); err != nil {
			return err
		}
	}

	return writeJSON(MetaName(base), d.Meta, owner)
}

func writeJSON(path string, v any, owner *fsutil.OwnerConfig) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}

	if err := fsutil.WriteFileAtomic(path, data, 0o644, owner); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Load reads the database stored under base. It returns ErrNotFound when
// the metadata artifact does not exist.
func Load(ctx context.Context, reader storage.Reader, base string) (*Database, error) {
	raw, err := reader.ReadFile(ctx, MetaName(base))
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	if raw == nil {
		return nil, fmt.Errorf("%s: %w", MetaName(base), ErrNotFound)
	}

	meta := &Meta{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}

	if meta.NTables < 0 {
		return nil, fmt.Errorf("metadata has negative n_tables %d", meta.NTables)
	}

	db := &Database{
		Roots: make([]*timing.Node, meta.NTables),
		Data:  make([]*frame.Frame, meta.NTables),
		Meta:  meta,
	}

	for i := 0; i < meta.NTables; i++ {
		root := &timing.Node{}
		if err := readJSON(ctx, reader, TreeName(base, i), root); err != nil {
			return nil, err
		}

		if path, ok := root.Consistent(); !ok {
			return nil, fmt.Errorf("%s: region %q has inconsistent ancestry", TreeName(base, i), path)
		}

		data := &frame.Frame{}
		if err := readJSON(ctx, reader, DataName(base, i), data); err != nil {
			return nil, err
		}

		db.Roots[i] = root
		db.Data[i] = data
	}

	return db, nil
}

func readJSON(ctx context.Context, reader storage.Reader, name string, v any) error {
	raw, err := reader.ReadFile(ctx, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	if raw == nil {
		return fmt.Errorf("missing artifact %s", name)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	return nil
}

// LoadFile loads a database from the local filesystem.
func LoadFile(ctx context.Context, base string) (*Database, error) {
	return Load(ctx, storage.NewLocalReader(""), base)
}

// Exists reports whether a database is stored under base on the local
// filesystem.
func Exists(base string) bool {
	return fsutil.Exists(MetaName(base))
}
