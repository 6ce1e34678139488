package cachestore

import (
	"strconv"
	"time"

	"github.com/tasklens/doccached/internal/namespace"
)

// Metadata keys attached to every cached chunk.
const (
	MetaDocumentID        = "document_id"
	MetaChunkIndex        = "chunk_index"
	MetaTenantID          = "tenant_id"
	MetaScopeID           = "scope_id"
	MetaFilename          = "filename"
	MetaUploadedAt        = "uploaded_at"
	MetaSyncedAt          = "synced_at"
	MetaSyncedFromPrimary = "synced_from_primary"
)

// ScopeKey addresses one logical collection: a tenant, an optional
// sub-tenant scope, and the collection kind.
type ScopeKey struct {
	TenantID string
	ScopeID  string
	Kind     namespace.Kind
}

// Namespace resolves the key to its collection namespace. Pure function of
// the key, see the namespace package.
func (k ScopeKey) Namespace() string {
	return namespace.Resolve(k.TenantID, k.ScopeID, k.Kind)
}

// Chunk is one cached projection of a source document's text, carrying
// full provenance back to the primary store.
type Chunk struct {
	// ID is unique within a namespace. The sync engine derives it
	// deterministically from (DocumentID, Index) so re-syncs overwrite
	// rather than accumulate.
	ID string

	// DocumentID is the primary-store id of the source document.
	DocumentID string

	// Index is the chunk's position within the document.
	Index int

	// Text is the chunk content.
	Text string

	TenantID string
	ScopeID  string
	Filename string

	// UploadedAt is the source document's upload time.
	UploadedAt time.Time

	// SyncedAt records when the sync engine wrote this chunk.
	SyncedAt time.Time

	// SyncedFromPrimary marks chunks produced by the sync engine, as
	// opposed to data written by older ingestion paths.
	SyncedFromPrimary bool
}

// Metadata flattens the chunk's provenance fields for the vector engine.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaDocumentID:        c.DocumentID,
		MetaChunkIndex:        strconv.Itoa(c.Index),
		MetaTenantID:          c.TenantID,
		MetaScopeID:           c.ScopeID,
		MetaFilename:          c.Filename,
		MetaUploadedAt:        c.UploadedAt.UTC().Format(time.RFC3339),
		MetaSyncedAt:          c.SyncedAt.UTC().Format(time.RFC3339),
		MetaSyncedFromPrimary: strconv.FormatBool(c.SyncedFromPrimary),
	}
}

// Result is one ranked similarity-search hit.
type Result struct {
	// ID is the chunk id.
	ID string

	// Text is the chunk content.
	Text string

	// Score is the similarity score, higher is more similar.
	Score float32

	// Metadata carries the chunk's provenance fields.
	Metadata map[string]string
}

// Filename returns the source document filename from provenance metadata.
func (r Result) Filename() string {
	return r.Metadata[MetaFilename]
}

// DocumentID returns the source document id from provenance metadata.
func (r Result) DocumentID() string {
	return r.Metadata[MetaDocumentID]
}
