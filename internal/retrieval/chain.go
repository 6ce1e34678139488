// Package retrieval answers document queries through an ordered fallback
// chain.
//
// Each tier is tried in full isolation and the first non-empty result
// wins: the warmed per-scope cache, then the legacy cache namespace, then
// a direct substring scan of the primary store (self-healing the cold
// cache on the way), and finally an identity re-resolution retry for
// callers that supplied a user id where a tenant id was expected. Search
// never returns an error; an exhausted chain yields an empty, logged
// result.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/cachestore"
	"github.com/tasklens/doccached/internal/docsync"
	"github.com/tasklens/doccached/internal/identity"
	"github.com/tasklens/doccached/internal/namespace"
	"github.com/tasklens/doccached/internal/primarystore"
)

var tracer = otel.Tracer("doccached.retrieval")

const (
	// DefaultTopN is the result count when the caller does not specify one.
	DefaultTopN = 5

	// DefaultTierTimeout bounds each tier's store calls. A timed-out tier
	// is a miss, not a failure.
	DefaultTierTimeout = 5 * time.Second

	// DefaultPreviewLength bounds primary-scan match previews, in runes.
	DefaultPreviewLength = 500
)

// Config holds fallback chain configuration.
type Config struct {
	// TopN is the default result count. Default: 5
	TopN int

	// TierTimeout bounds each tier. Default: 5s
	TierTimeout time.Duration

	// PreviewLength bounds direct-scan previews, in runes. Default: 500
	PreviewLength int

	// DisableLegacyTier turns off the legacy namespace tier once historical
	// collections have been migrated.
	DisableLegacyTier bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.TierTimeout <= 0 {
		c.TierTimeout = DefaultTierTimeout
	}
	if c.PreviewLength <= 0 {
		c.PreviewLength = DefaultPreviewLength
	}
}

// Chain is the retrieval fallback chain.
type Chain struct {
	cache    cachestore.Store
	primary  primarystore.Store
	engine   *docsync.Engine
	identity *identity.Resolver
	config   Config
	logger   *zap.Logger
}

// NewChain creates a fallback chain over the given stores. The identity
// resolver may be nil, which disables the re-resolution tier.
func NewChain(cache cachestore.Store, primary primarystore.Store, engine *docsync.Engine, resolver *identity.Resolver, config Config, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Chain{
		cache:    cache,
		primary:  primary,
		engine:   engine,
		identity: resolver,
		config:   config,
		logger:   logger.Named("retrieval"),
	}
}

// Search returns up to topN ranked result strings for the query within
// (tenantID, scopeID). topN <= 0 uses the configured default.
//
// Best-effort: an empty slice means no tier produced anything, never that
// something went wrong. Errors inside a tier demote it to a miss.
func (c *Chain) Search(ctx context.Context, tenantID, scopeID, query string, topN int) []string {
	ctx, span := tracer.Start(ctx, "Chain.Search")
	defer span.End()

	if topN <= 0 {
		topN = c.config.TopN
	}
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("scope_id", scopeID),
		attribute.Int("top_n", topN),
	)

	if strings.TrimSpace(query) == "" {
		return nil
	}

	if results := c.runTiers(ctx, tenantID, scopeID, query, topN); len(results) > 0 {
		return results
	}

	// Tier 4: the supplied tenant id may actually be a user id. Resolve it
	// and retry the whole chain once under the resolved tenant. The
	// resolver caches the outcome, so later requests skip straight to the
	// right tenant's tiers.
	if c.identity != nil {
		if resolved, ok := c.identity.Resolve(ctx, tenantID); ok && resolved != tenantID {
			c.logger.Info("retrying search under resolved tenant",
				zap.String("supplied_id", tenantID),
				zap.String("tenant_id", resolved),
			)
			observeTier("identity_retry")
			if results := c.runTiers(ctx, resolved, scopeID, query, topN); len(results) > 0 {
				observeSearch("hit")
				return results
			}
		}
	}

	c.logger.Info("search exhausted all tiers",
		zap.String("tenant_id", tenantID),
		zap.String("scope_id", scopeID),
	)
	observeSearch("exhausted")
	return nil
}

// runTiers executes tiers 1-3 for one tenant id.
func (c *Chain) runTiers(ctx context.Context, tenantID, scopeID, query string, topN int) []string {
	// Tier 1: the warmed per-scope cache.
	primaryKey := cachestore.ScopeKey{TenantID: tenantID, ScopeID: scopeID, Kind: namespace.KindDocuments}
	if results := c.queryCache(ctx, primaryKey, query, topN); len(results) > 0 {
		observeTier("cache")
		observeSearch("hit")
		return results
	}

	// Tier 2: the legacy tenant-wide namespace written by the older sync
	// path. Time-boxed for removal once those collections are migrated.
	if !c.config.DisableLegacyTier {
		legacyKey := cachestore.ScopeKey{TenantID: tenantID, Kind: namespace.KindLegacy}
		if results := c.queryCache(ctx, legacyKey, query, topN); len(results) > 0 {
			observeTier("legacy")
			observeSearch("hit")
			return results
		}
	}

	// Tier 3: both caches missed. Self-heal the cold cache for next time,
	// then scan the primary store directly. Low precision, but a floor:
	// reachable documents are never invisible just because the cache is
	// cold.
	if c.engine != nil {
		if r := c.engine.Sync(ctx, tenantID, scopeID, false); !r.Success {
			c.logger.Warn("inline sync failed during fallback",
				zap.String("tenant_id", tenantID),
				zap.String("scope_id", scopeID),
				zap.String("message", r.Message),
			)
		}
	}
	if results := c.scanPrimary(ctx, tenantID, scopeID, query, topN); len(results) > 0 {
		observeTier("primary_scan")
		observeSearch("hit")
		return results
	}

	return nil
}

// queryCache runs one similarity query against a cache namespace. Any
// failure, including a tier timeout, demotes the tier to a miss.
func (c *Chain) queryCache(ctx context.Context, key cachestore.ScopeKey, query string, topN int) []string {
	ctx, cancel := context.WithTimeout(ctx, c.config.TierTimeout)
	defer cancel()

	col, err := c.cache.GetOrCreate(ctx, key)
	if err != nil {
		c.logger.Warn("cache tier unavailable",
			zap.String("namespace", key.Namespace()),
			zap.Error(err),
		)
		return nil
	}

	results, err := c.cache.Query(ctx, col, query, topN)
	if err != nil {
		c.logger.Warn("cache query failed, falling through",
			zap.String("namespace", key.Namespace()),
			zap.Error(err),
		)
		return nil
	}

	formatted := make([]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, formatResult(r.Filename(), r.Text))
	}
	return formatted
}

// scanPrimary does naive case-insensitive substring containment over the
// tenant's documents, truncating each match to a bounded preview.
func (c *Chain) scanPrimary(ctx context.Context, tenantID, scopeID, query string, topN int) []string {
	ctx, cancel := context.WithTimeout(ctx, c.config.TierTimeout)
	defer cancel()

	docs, err := c.primary.FindDocuments(ctx, tenantID, scopeID)
	if err != nil {
		c.logger.Warn("primary scan failed, falling through",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil
	}

	needle := []rune(strings.ToLower(query))
	var results []string
	for _, doc := range docs {
		if !doc.HasContent() || doc.ExtractionFailed() {
			continue
		}
		content := []rune(doc.Content)
		idx := indexFold(content, needle)
		if idx < 0 {
			continue
		}
		results = append(results, formatResult(doc.Filename, preview(content, idx, c.config.PreviewLength)))
		if len(results) >= topN {
			break
		}
	}
	return results
}

// Status reports cache/primary alignment for the scope, resolving the
// supplied id the same way Search does so status and search agree on
// which tenant they describe.
func (c *Chain) Status(ctx context.Context, tenantID, scopeID string) docsync.Status {
	if c.identity != nil {
		if _, err := uuid.Parse(tenantID); err == nil {
			if resolved, ok := c.identity.Resolve(ctx, tenantID); ok {
				tenantID = resolved
			}
		}
	}
	if c.engine == nil {
		return docsync.Status{}
	}
	return c.engine.Status(ctx, tenantID, scopeID)
}

// formatResult renders one hit with its provenance.
func formatResult(filename, text string) string {
	return fmt.Sprintf("Document: %s\nContent: %s", filename, text)
}

// indexFold finds needle in haystack case-insensitively, rune-wise.
// Returns the rune index of the first match, or -1.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// preview extracts a bounded window of text around a match position.
func preview(content []rune, idx, length int) string {
	// Lead with a little context before the match.
	start := idx - length/4
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(string(content[start:end]))
}
