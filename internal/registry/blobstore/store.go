// Package blobstore abstracts the object store holding package files. The
// registry consumes it through get/put for the deprecated proxy path and
// presign for the primary transfer-URL path.
package blobstore

import (
	"context"
	"io"
)

// Store is the blob store seam.
type Store interface {
	// Get streams an object. The second return value is the stored
	// content type.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Put writes an object.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// PresignGet issues a time-limited signed download URL for the key.
	PresignGet(ctx context.Context, key string) (string, error)

	// PresignPut issues a time-limited signed upload URL for the key.
	PresignPut(ctx context.Context, key string) (string, error)
}
