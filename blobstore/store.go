package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing an ivfshard index's data blobs:
// per-shard posting-list blobs, centroid blobs, and placement manifests.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create opens a blob for streaming writes. The blob is not visible to
	// Open until Close is called on the returned WritableBlob.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically in a single call.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a name that does not exist is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off, following io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (n int, err error)
	// ReadRange returns a stream over [off, off+length). Callers must Close it.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a handle for streaming a new blob into a BlobStore.
// The blob is committed when Close returns nil.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered writes to durable storage without closing the blob.
	Sync() error
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}
