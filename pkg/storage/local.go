package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Compile-time interface check.
var _ Reader = (*localReader)(nil)

type localReader struct {
	dir string
}

// NewLocalReader creates a Reader resolving names relative to dir.
// Absolute names are read as given.
func NewLocalReader(dir string) Reader {
	return &localReader{dir: dir}
}

func (r *localReader) ReadFile(_ context.Context, name string) ([]byte, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dir, name)
	}

	data, err := os.ReadFile(p) //nolint:gosec // trusted paths from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}
