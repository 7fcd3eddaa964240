package storage

import (
	"context"
	"io"
)

// BlobStore defines the interface for content-addressed file storage
type BlobStore interface {
	// Store writes content under a name derived from its hash and returns
	// the resulting path. Identical content maps to the same path and the
	// underlying write happens at most once.
	Store(ctx context.Context, content []byte, ext string) (string, error)

	// Retrieve opens the stored file at the given path
	Retrieve(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if a stored file exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
