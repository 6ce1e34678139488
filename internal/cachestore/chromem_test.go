package cachestore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/doccached/internal/cachestore"
	"github.com/tasklens/doccached/internal/embeddings"
	"github.com/tasklens/doccached/internal/namespace"
)

func newTestStore(t *testing.T) cachestore.Store {
	t.Helper()

	store, err := cachestore.NewChromemStore(cachestore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 64,
	}, embeddings.NewHashEmbedder(64), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunk(docID string, index int, text string) cachestore.Chunk {
	return cachestore.Chunk{
		ID:                fmt.Sprintf("%s:%d", docID, index),
		DocumentID:        docID,
		Index:             index,
		Text:              text,
		TenantID:          "t1",
		ScopeID:           "p1",
		Filename:          "spec.txt",
		UploadedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SyncedAt:          time.Now(),
		SyncedFromPrimary: true,
	}
}

func TestChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := cachestore.NewChromemStore(cachestore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, cachestore.ErrInvalidConfig)
}

func TestChromemStore_GetOrCreateResolvesNamespace(t *testing.T) {
	store := newTestStore(t)

	col, err := store.GetOrCreate(context.Background(), cachestore.ScopeKey{
		TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc_t1_p1_documents", col.Name())
}

func TestChromemStore_UpsertAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	count, err := store.Count(ctx, col)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	chunks := []cachestore.Chunk{
		testChunk("doc-1", 0, "The system must support 100 concurrent users."),
		testChunk("doc-1", 1, "Latency shall stay below 200 milliseconds."),
	}
	require.NoError(t, store.Upsert(ctx, col, chunks))

	count, err = store.Count(ctx, col)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChromemStore_UpsertDuplicateIDsOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, col, []cachestore.Chunk{testChunk("doc-1", 0, "original text")}))
	require.NoError(t, store.Upsert(ctx, col, []cachestore.Chunk{testChunk("doc-1", 0, "replacement text")}))

	count, err := store.Count(ctx, col)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same chunk id must overwrite, not duplicate")

	results, err := store.Query(ctx, col, "replacement text", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "replacement text", results[0].Text)
}

func TestChromemStore_UpsertEmptyBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	err = store.Upsert(ctx, col, nil)
	assert.ErrorIs(t, err, cachestore.ErrEmptyBatch)
}

func TestChromemStore_QueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	results, err := store.Query(ctx, col, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "empty collection must return empty results, not an error")
}

func TestChromemStore_QueryRanksAndCarriesProvenance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, col, []cachestore.Chunk{
		testChunk("doc-1", 0, "The system must support 100 concurrent users."),
		testChunk("doc-2", 0, "Unrelated appendix about office furniture."),
	}))

	results, err := store.Query(ctx, col, "how many concurrent users are supported", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Contains(t, top.Text, "concurrent users")
	assert.Equal(t, "spec.txt", top.Filename())
	assert.Equal(t, "doc-1", top.DocumentID())
	assert.Equal(t, "true", top.Metadata[cachestore.MetaSyncedFromPrimary])

	if len(results) == 2 {
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	}
}

func TestChromemStore_QueryTopNClampedToCollectionSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, col, []cachestore.Chunk{testChunk("doc-1", 0, "only one chunk")}))

	results, err := store.Query(ctx, col, "one chunk", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_DeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	col, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "t1", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, col, []cachestore.Chunk{testChunk("doc-1", 0, "to be deleted")}))

	require.NoError(t, store.DeleteCollection(ctx, col))

	count, err := store.Count(ctx, col)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestChromemStore_TenantsArePartitioned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	colA, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "tenant-a", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)
	colB, err := store.GetOrCreate(ctx, cachestore.ScopeKey{TenantID: "tenant-b", ScopeID: "p1", Kind: namespace.KindDocuments})
	require.NoError(t, err)

	require.NotEqual(t, colA.Name(), colB.Name())

	require.NoError(t, store.Upsert(ctx, colA, []cachestore.Chunk{testChunk("doc-a", 0, "tenant a secret roadmap")}))

	results, err := store.Query(ctx, colB, "tenant a secret roadmap", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "tenant B must never see tenant A's chunks")
}

func TestNewStore_Factory(t *testing.T) {
	store, err := cachestore.NewStore(cachestore.Config{
		Provider: "chromem",
		Chromem:  cachestore.ChromemConfig{Path: t.TempDir(), VectorSize: 64},
	}, embeddings.NewHashEmbedder(64), nil)
	require.NoError(t, err)
	assert.IsType(t, &cachestore.ChromemStore{}, store)

	_, err = cachestore.NewStore(cachestore.Config{Provider: "weaviate"}, embeddings.NewHashEmbedder(64), nil)
	assert.ErrorIs(t, err, cachestore.ErrInvalidConfig)
}
