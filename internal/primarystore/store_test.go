package primarystore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/doccached/internal/primarystore"
)

func TestDocument_HasContent(t *testing.T) {
	assert.False(t, primarystore.Document{}.HasContent())
	assert.True(t, primarystore.Document{Content: "text"}.HasContent())
}

func TestDocument_ExtractionFailed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"normal text", "regular document content", false},
		{"sentinel alone", primarystore.ExtractionErrorSentinel, true},
		{"sentinel with detail", primarystore.ExtractionErrorSentinel + ": unsupported format", true},
		{"sentinel mid-text", "prefix " + primarystore.ExtractionErrorSentinel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := primarystore.Document{Content: tt.content}
			assert.Equal(t, tt.want, doc.ExtractionFailed())
		})
	}
}

func TestMemoryStore_FindDocuments(t *testing.T) {
	store := primarystore.NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.PutDocument(primarystore.Document{ID: "b", TenantID: "t1", ScopeID: "p1", UploadedAt: base.Add(time.Hour)})
	store.PutDocument(primarystore.Document{ID: "a", TenantID: "t1", ScopeID: "p1", UploadedAt: base})
	store.PutDocument(primarystore.Document{ID: "c", TenantID: "t1", ScopeID: "p2", UploadedAt: base})
	store.PutDocument(primarystore.Document{ID: "d", TenantID: "t2", ScopeID: "p1", UploadedAt: base})

	docs, err := store.FindDocuments(ctx, "t1", "p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID, "documents must come back in upload order")
	assert.Equal(t, "b", docs[1].ID)

	// An empty scope matches every scope of the tenant.
	docs, err = store.FindDocuments(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = store.FindDocuments(ctx, "unknown", "")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_FindUserTenant(t *testing.T) {
	store := primarystore.NewMemoryStore()
	ctx := context.Background()

	store.PutUser("user-1", "t1")

	tenantID, err := store.FindUserTenant(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)

	_, err = store.FindUserTenant(ctx, "missing")
	assert.ErrorIs(t, err, primarystore.ErrNotFound)
}

func TestMemoryStore_Failing(t *testing.T) {
	store := primarystore.NewMemoryStore()
	store.SetFailing(true)

	_, err := store.FindDocuments(context.Background(), "t1", "")
	assert.ErrorIs(t, err, primarystore.ErrUnavailable)

	_, err = store.FindUserTenant(context.Background(), "user-1")
	assert.ErrorIs(t, err, primarystore.ErrUnavailable)

	store.SetFailing(false)
	_, err = store.FindDocuments(context.Background(), "t1", "")
	assert.NoError(t, err)
}
