package blobstore

import (
	"context"
	"io"
)

// Store is the blob backend behind file records. Keys are forward-slash
// relative paths ("users/<id>/uploads/<name>"); drivers own where the
// bytes actually live.
type Store interface {
	// Upload stores the file at srcPath under key.
	Upload(ctx context.Context, key string, srcPath string, contentType string) error

	// Stage makes the object readable on the local filesystem and returns
	// its path. The bool reports whether the path is a temporary copy the
	// caller must remove when done.
	Stage(ctx context.Context, key string) (string, bool, error)

	// Open streams the object's bytes.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the object.
	Remove(ctx context.Context, key string) error
}
