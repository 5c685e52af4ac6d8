// Package blob stores attachment content under generated object keys, either
// in a MinIO bucket or on the local filesystem.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// PutOptions describe the object being written.
type PutOptions struct {
	ContentType string
	// Metadata is attached to the object where the backend supports it.
	Metadata map[string]string
}

// Store persists and reads back binary objects by key. Keys always use
// forward slashes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
