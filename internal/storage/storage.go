// Package storage contains blob storage abstractions. Implementations use
// streaming I/O only; a Get reader must be closed by the caller and every
// Get re-reads from the durable medium, there is no in-memory cache.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Get when no blob exists under the key.
// Delete treats a missing blob as success so rollback never becomes a hard
// failure masking the original error.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a blob store addressed by caller-generated object names.
type Storage interface {
	// Put writes the full stream under the given key. On failure no partial
	// object is left visible.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens the blob for sequential reading alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob by key. Deleting an absent blob is not an error.
	Delete(ctx context.Context, key string) error
}
