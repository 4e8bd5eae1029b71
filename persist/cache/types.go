// Package cache provides a byte-oriented block cache used by the persistence
// layer to avoid re-fetching ranges of a persisted index blob from a remote
// BlobStore (S3, MinIO) on every shard load.
package cache

import (
	"context"
)

// CacheKind separates key spaces so unrelated block types never collide.
type CacheKind uint8

const (
	CacheKindUnknown CacheKind = iota
	// CacheKindCentroids identifies blocks from the shared centroid table section.
	CacheKindCentroids
	// CacheKindPosting identifies blocks from a single shard's posting section.
	CacheKindPosting
	// CacheKindBlob is a generic, path-addressed block (used by CachingStore).
	CacheKindBlob
)

// CacheKey must be stable across processes for a given persisted index
// version. If the cached value depends on manifest version, include it.
type CacheKey struct {
	Kind CacheKind
	// ShardID identifies the owning shard for CacheKindPosting entries.
	ShardID uint32
	// ManifestVersion distinguishes blocks across rebuilds of the same name.
	ManifestVersion uint64
	// Offset is a logical block identifier (byte offset or block index).
	Offset uint64
	// Path identifies the source blob name; used by generic blob caching
	// when ShardID is not known or not a sufficient key by itself.
	Path string
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations may copy or retain; caller must treat b as immutable.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources (e.g. background workers).
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
