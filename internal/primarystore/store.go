// Package primarystore provides read-only access to the durable record
// store that owns source documents and tenant/user records.
//
// The primary store is the source of truth. This package never writes to
// it: the cache layer only discovers documents for synchronization and
// resolves ambiguous tenant identifiers. Documents may disappear between a
// scan and a later read; callers must tolerate that.
package primarystore

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for primary store operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable indicates the store could not be reached.
	ErrUnavailable = errors.New("primary store unavailable")
)

// ExtractionErrorSentinel marks document content whose text extraction
// failed upstream. Documents carrying this prefix are excluded from sync.
const ExtractionErrorSentinel = "[extraction-error]"

// Document is a tenant-uploaded source document as stored in the primary
// store. Content is plain text produced by the upstream extraction path;
// an empty Content means the text is absent.
type Document struct {
	ID          string
	TenantID    string
	ScopeID     string
	Filename    string
	Content     string
	ContentType string
	UploadedAt  time.Time
}

// HasContent reports whether the document carries usable text.
func (d Document) HasContent() bool {
	return d.Content != ""
}

// ExtractionFailed reports whether the content is an extraction error
// marker rather than real text.
func (d Document) ExtractionFailed() bool {
	return len(d.Content) >= len(ExtractionErrorSentinel) &&
		d.Content[:len(ExtractionErrorSentinel)] == ExtractionErrorSentinel
}

// Store is the read-only client interface over the primary record store.
type Store interface {
	// FindDocuments returns all documents for a tenant, optionally narrowed
	// to a scope. An empty scopeID matches every scope. Documents with
	// absent content are included; eligibility filtering is the caller's
	// concern.
	FindDocuments(ctx context.Context, tenantID, scopeID string) ([]Document, error)

	// FindUserTenant looks up the tenant a user belongs to. Returns
	// ErrNotFound when no user record exists for the id.
	FindUserTenant(ctx context.Context, userID string) (string, error)

	// Close releases the underlying connection.
	Close() error
}
