// Package cachestore provides the per-tenant similarity-search cache over
// embedded or remote vector engines.
//
// Collections are addressed exclusively through ScopeKey values resolved
// into namespaces by the namespace package; the API never accepts raw
// collection name strings, so cross-tenant leakage is structurally
// impossible. The cache is derived state: it may be deleted at any time
// and rebuilt from the primary store by the sync engine.
package cachestore

import (
	"context"
	"errors"
)

// Sentinel errors for cache store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid cachestore configuration")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrUnavailable indicates the cache engine could not be reached.
	ErrUnavailable = errors.New("cache store unavailable")

	// ErrEmptyBatch indicates an upsert with no chunks.
	ErrEmptyBatch = errors.New("empty chunk batch")
)

// Collection is an opaque handle to one physical cache collection.
//
// Handles are minted only by Store.GetOrCreate from a ScopeKey, never from
// raw strings.
type Collection struct {
	key  ScopeKey
	name string
}

// Name returns the resolved namespace this handle addresses.
func (c Collection) Name() string { return c.name }

// Key returns the scope key the handle was minted for.
func (c Collection) Key() ScopeKey { return c.key }

// Zero reports whether the handle is the zero value.
func (c Collection) Zero() bool { return c.name == "" }

// Store is the client interface over the vector cache engine.
//
// Implementations: ChromemStore (embedded, default) and QdrantStore
// (remote gRPC). All operations are collection-scoped and carry the
// caller's context for cancellation; implementations must bound their own
// I/O.
type Store interface {
	// GetOrCreate returns a handle to the collection for key, creating it
	// empty if it does not exist.
	GetOrCreate(ctx context.Context, key ScopeKey) (Collection, error)

	// Upsert writes chunks into the collection. Chunks with ids already
	// present are overwritten, making the operation idempotent by id.
	Upsert(ctx context.Context, col Collection, chunks []Chunk) error

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context, col Collection) (int, error)

	// Query runs a similarity search and returns up to topN results ranked
	// by descending score. Querying an empty collection returns an empty
	// slice, not an error.
	Query(ctx context.Context, col Collection, text string, topN int) ([]Result, error)

	// DeleteCollection removes the collection and all its chunks.
	// Deleting a collection that does not exist is a no-op.
	DeleteCollection(ctx context.Context, col Collection) error

	// Close releases engine resources.
	Close() error
}
