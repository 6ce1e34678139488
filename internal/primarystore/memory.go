package primarystore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the memory dev
// profile. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]Document // keyed by document id
	users     map[string]string   // user id -> tenant id

	// failing simulates an unreachable primary store when set.
	failing bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]Document),
		users:     make(map[string]string),
	}
}

// PutDocument inserts or replaces a document.
func (s *MemoryStore) PutDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
}

// RemoveDocument deletes a document, mimicking external deletion.
func (s *MemoryStore) RemoveDocument(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
}

// PutUser registers a user record belonging to a tenant.
func (s *MemoryStore) PutUser(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = tenantID
}

// SetFailing toggles simulated unavailability.
func (s *MemoryStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// FindDocuments implements Store.
func (s *MemoryStore) FindDocuments(ctx context.Context, tenantID, scopeID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failing {
		return nil, ErrUnavailable
	}

	var docs []Document
	for _, d := range s.documents {
		if d.TenantID != tenantID {
			continue
		}
		if scopeID != "" && d.ScopeID != scopeID {
			continue
		}
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})

	return docs, nil
}

// FindUserTenant implements Store.
func (s *MemoryStore) FindUserTenant(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failing {
		return "", ErrUnavailable
	}

	tenantID, ok := s.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	return tenantID, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
