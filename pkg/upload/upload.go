package upload

import "context"

// Uploader publishes a persisted timing database to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// UploadDatabase uploads the meta, tree and data artifacts of the
	// database persisted at base. Objects are keyed by the artifact
	// basename below the configured prefix, which is the layout
	// storage.NewS3Reader reads back.
	UploadDatabase(ctx context.Context, base string, nTables int) (*Summary, error)
}

// Summary describes a finished upload.
type Summary struct {
	Files int
	Bytes int64
	Keys  []string
}
