package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Open when no blob exists under the key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds uploaded file bytes addressed by storage key.
// Delete succeeds when the key is already absent.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ BlobStore = (*FileStore)(nil)
	_ BlobStore = (*MinioStore)(nil)
)
