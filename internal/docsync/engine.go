// Package docsync bridges the primary store and the document cache.
//
// The engine discovers eligible source documents for a (tenant, scope)
// pair, chunks them, and idempotently upserts the chunks into the cache.
// A per-namespace lease guards the warmth check so concurrent callers
// cannot double-sync a cold cache, and every failure is reported as a
// structured Result rather than an error: sync failing must never break
// retrieval, which tolerates a cold cache.
package docsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/cachestore"
	"github.com/tasklens/doccached/internal/chunker"
	"github.com/tasklens/doccached/internal/namespace"
	"github.com/tasklens/doccached/internal/primarystore"
)

var tracer = otel.Tracer("doccached.docsync")

// DefaultMinContentLength is the minimum usable document text length.
const DefaultMinContentLength = 20

// Result is the structured outcome of one sync pass.
type Result struct {
	// Success is false only when the primary store or cache store could
	// not be used at all. Per-document failures do not clear it.
	Success bool `json:"success"`

	// Message explains failures and skips in operator terms.
	Message string `json:"message,omitempty"`

	// DocumentsFound is the number of eligible documents discovered.
	DocumentsFound int `json:"documents_found"`

	// ChunksSynced is the number of chunks written in this pass.
	ChunksSynced int `json:"chunks_synced"`

	// AlreadyWarm is true when the namespace had chunks and no forced
	// resync was requested, so the pass short-circuited.
	AlreadyWarm bool `json:"already_warm"`

	// InProgress is true when another caller held the sync lease.
	InProgress bool `json:"in_progress"`
}

// Status reports cache/primary alignment for a (tenant, scope) pair.
type Status struct {
	CacheChunks      int  `json:"cache_chunks"`
	PrimaryDocuments int  `json:"primary_documents"`
	IsSynced         bool `json:"is_synced"`
	SyncNeeded       bool `json:"sync_needed"`
}

// Config holds sync engine configuration.
type Config struct {
	// MinContentLength excludes documents with less usable text.
	// Default: 20
	MinContentLength int

	// Chunking controls document splitting.
	Chunking chunker.Options

	// LeaseTTL bounds sync leases. Default: 30s
	LeaseTTL time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MinContentLength <= 0 {
		c.MinContentLength = DefaultMinContentLength
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	c.Chunking.ApplyDefaults()
}

// Engine synchronizes primary-store documents into the cache store.
type Engine struct {
	primary primarystore.Store
	cache   cachestore.Store
	lock    Locker
	config  Config
	logger  *zap.Logger
}

// NewEngine creates a sync engine. A nil locker gets an in-process
// MemoryLocker.
func NewEngine(primary primarystore.Store, cache cachestore.Store, lock Locker, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if lock == nil {
		lock = NewMemoryLocker(config.LeaseTTL)
	}

	return &Engine{
		primary: primary,
		cache:   cache,
		lock:    lock,
		config:  config,
		logger:  logger.Named("docsync"),
	}
}

// ChunkID deterministically derives a chunk id from its document and
// position, so re-syncing the same document overwrites its chunks instead
// of accumulating duplicates.
func ChunkID(documentID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", documentID, index)))
	return hex.EncodeToString(sum[:16])
}

// Sync ensures the cache for (tenantID, scopeID) reflects the primary
// store.
//
// The pass is idempotent: a warm namespace short-circuits unless force is
// set, and chunk ids are deterministic so repeats overwrite. force drops
// the existing collection and rebuilds it from a freshly staged scan.
// Failures never propagate as errors; inspect Result.
func (e *Engine) Sync(ctx context.Context, tenantID, scopeID string, force bool) Result {
	ctx, span := tracer.Start(ctx, "Engine.Sync")
	defer span.End()

	key := cachestore.ScopeKey{TenantID: tenantID, ScopeID: scopeID, Kind: namespace.KindDocuments}
	ns := key.Namespace()
	span.SetAttributes(
		attribute.String("namespace", ns),
		attribute.Bool("force", force),
	)

	token, acquired, err := e.lock.Acquire(ctx, ns)
	if err != nil || !acquired {
		// Lease busy (or lease backend unreachable): another pass is, or
		// may be, running. Callers retry later; retrieval falls back.
		observeSync("busy")
		return Result{Success: true, InProgress: true, Message: "sync already in progress"}
	}
	defer func() { _ = e.lock.Release(context.WithoutCancel(ctx), ns, token) }()

	col, err := e.cache.GetOrCreate(ctx, key)
	if err != nil {
		observeSync("failed")
		return e.failure(ns, "opening cache collection", err)
	}

	count, err := e.cache.Count(ctx, col)
	if err != nil {
		observeSync("failed")
		return e.failure(ns, "counting cache collection", err)
	}

	if count > 0 && !force {
		e.logger.Debug("cache already warm",
			zap.String("namespace", ns),
			zap.Int("chunks", count),
		)
		observeSync("warm")
		return Result{Success: true, AlreadyWarm: true}
	}

	docs, err := e.primary.FindDocuments(ctx, tenantID, scopeID)
	if err != nil {
		observeSync("failed")
		return e.failure(ns, "scanning primary store", err)
	}

	// Stage all chunk batches before touching the cache so a forced
	// rebuild never destroys data it cannot replace.
	batches, skipped := e.stage(tenantID, scopeID, docs)

	if force && count > 0 {
		if err := e.cache.DeleteCollection(ctx, col); err != nil {
			observeSync("failed")
			return e.failure(ns, "dropping collection for forced resync", err)
		}
		if col, err = e.cache.GetOrCreate(ctx, key); err != nil {
			observeSync("failed")
			return e.failure(ns, "recreating collection", err)
		}
	}

	result := Result{Success: true, DocumentsFound: len(batches)}
	failures := 0
	for _, batch := range batches {
		// One batched write per document: no caller ever observes a
		// document partially upserted.
		if err := e.cache.Upsert(ctx, col, batch); err != nil {
			failures++
			e.logger.Warn("document upsert failed, skipping",
				zap.String("namespace", ns),
				zap.String("document_id", batch[0].DocumentID),
				zap.Error(err),
			)
			continue
		}
		result.ChunksSynced += len(batch)
	}

	if failures > 0 && result.ChunksSynced == 0 {
		observeSync("failed")
		result.Success = false
		result.Message = fmt.Sprintf("all %d document upserts failed", failures)
		return result
	}
	if failures > 0 {
		result.Message = fmt.Sprintf("%d of %d documents failed to sync", failures, len(batches))
	}

	observeSync("synced")
	chunksSyncedTotal.Add(float64(result.ChunksSynced))
	e.logger.Info("sync completed",
		zap.String("namespace", ns),
		zap.Int("documents_found", result.DocumentsFound),
		zap.Int("chunks_synced", result.ChunksSynced),
		zap.Int("documents_skipped", skipped),
		zap.Int("documents_failed", failures),
		zap.Bool("force", force),
	)
	return result
}

// stage chunks every eligible document into an upsert batch. Pure with
// respect to the stores; malformed documents are skipped and counted.
func (e *Engine) stage(tenantID, scopeID string, docs []primarystore.Document) (batches [][]cachestore.Chunk, skipped int) {
	now := time.Now()
	for _, doc := range docs {
		if !e.eligible(doc) {
			skipped++
			continue
		}

		pieces := chunker.Split(doc.Content, e.config.Chunking)
		if len(pieces) == 0 {
			skipped++
			continue
		}

		batch := make([]cachestore.Chunk, len(pieces))
		for i, text := range pieces {
			batch[i] = cachestore.Chunk{
				ID:                ChunkID(doc.ID, i),
				DocumentID:        doc.ID,
				Index:             i,
				Text:              text,
				TenantID:          tenantID,
				ScopeID:           scopeID,
				Filename:          doc.Filename,
				UploadedAt:        doc.UploadedAt,
				SyncedAt:          now,
				SyncedFromPrimary: true,
			}
		}
		batches = append(batches, batch)
	}
	return batches, skipped
}

// eligible applies the data-quality gate from the sync contract.
func (e *Engine) eligible(doc primarystore.Document) bool {
	if !doc.HasContent() || doc.ExtractionFailed() {
		return false
	}
	return len(strings.TrimSpace(doc.Content)) >= e.config.MinContentLength
}

// Status reports cache/primary alignment without mutating either side.
func (e *Engine) Status(ctx context.Context, tenantID, scopeID string) Status {
	key := cachestore.ScopeKey{TenantID: tenantID, ScopeID: scopeID, Kind: namespace.KindDocuments}

	var st Status
	if col, err := e.cache.GetOrCreate(ctx, key); err == nil {
		if n, err := e.cache.Count(ctx, col); err == nil {
			st.CacheChunks = n
		}
	}

	if docs, err := e.primary.FindDocuments(ctx, tenantID, scopeID); err == nil {
		for _, d := range docs {
			if e.eligible(d) {
				st.PrimaryDocuments++
			}
		}
	}

	st.IsSynced = st.CacheChunks > 0
	st.SyncNeeded = !st.IsSynced && st.PrimaryDocuments > 0
	return st
}

// failure logs and wraps a total sync failure into a Result.
func (e *Engine) failure(ns, action string, err error) Result {
	e.logger.Error("sync failed",
		zap.String("namespace", ns),
		zap.String("action", action),
		zap.Error(err),
	)
	return Result{Success: false, Message: fmt.Sprintf("%s: %v", action, err)}
}
