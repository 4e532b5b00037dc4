// Package storage reads persisted timing database artifacts from a local
// directory or an S3 bucket.
package storage

import "context"

// Reader provides read access to database artifacts without knowing the
// backend.
type Reader interface {
	// ReadFile reads a named artifact. Returns (nil, nil) when it does
	// not exist.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}
