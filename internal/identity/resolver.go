// Package identity disambiguates caller-supplied tenant identifiers.
//
// Callers of the retrieval layer frequently pass a user id where a tenant
// id is expected. The resolver treats any structurally valid record id as
// potentially a user id, consults the primary store once, and caches the
// outcome for the remainder of the process so repeated requests in a
// session do not repeat the lookup.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tasklens/doccached/internal/primarystore"
)

const (
	// DefaultCacheTTL bounds how long a resolution is trusted.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultCacheSize bounds the number of cached resolutions.
	DefaultCacheSize = 1024
)

// Config holds resolver configuration.
type Config struct {
	// CacheTTL is how long resolutions stay cached. Default: 15m
	CacheTTL time.Duration

	// CacheSize is the LRU capacity. Default: 1024
	CacheSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
}

// Resolver resolves ambiguous tenant identifiers against the primary store.
type Resolver struct {
	primary primarystore.Store
	cache   *resolutionCache
	group   singleflight.Group
	logger  *zap.Logger
}

// NewResolver creates a Resolver backed by the given primary store.
func NewResolver(primary primarystore.Store, config Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Resolver{
		primary: primary,
		cache:   newResolutionCache(config.CacheTTL, config.CacheSize),
		logger:  logger.Named("identity"),
	}
}

// Resolve maps a supplied identifier to the tenant id that scopes its
// documents.
//
// If suppliedID is not a structurally valid record identifier it is
// returned unchanged with resolved=false: it is assumed to already be a
// tenant id. Otherwise the primary store is consulted for a user record;
// a hit returns that user's tenant id with resolved=true. Lookup misses
// and lookup errors both fall back to the supplied id: resolution is
// best-effort and never fatal, and resolving an already-correct tenant id
// is an idempotent no-op.
func (r *Resolver) Resolve(ctx context.Context, suppliedID string) (string, bool) {
	if suppliedID == "" {
		return suppliedID, false
	}

	// Non-record identifiers (slugs, names) cannot be user ids.
	if _, err := uuid.Parse(suppliedID); err != nil {
		return suppliedID, false
	}

	if tenantID, resolved, ok := r.cache.get(suppliedID); ok {
		return tenantID, resolved
	}

	// Collapse concurrent resolutions of the same id into one lookup.
	type outcome struct {
		tenantID string
		resolved bool
	}
	v, _, _ := r.group.Do(suppliedID, func() (interface{}, error) {
		tenantID, err := r.primary.FindUserTenant(ctx, suppliedID)
		switch {
		case err == nil && tenantID != "" && tenantID != suppliedID:
			r.logger.Debug("resolved user id to tenant",
				zap.String("supplied_id", suppliedID),
				zap.String("tenant_id", tenantID),
			)
			r.cache.set(suppliedID, tenantID, true)
			return outcome{tenantID: tenantID, resolved: true}, nil

		case errors.Is(err, primarystore.ErrNotFound):
			// A valid record id with no user record: already a tenant id.
			r.cache.set(suppliedID, suppliedID, false)
			return outcome{tenantID: suppliedID}, nil

		case err != nil:
			// Transient failure: proceed with the supplied id, do not
			// cache so the next caller retries.
			r.logger.Warn("identity lookup failed, using supplied id",
				zap.String("supplied_id", suppliedID),
				zap.Error(err),
			)
			return outcome{tenantID: suppliedID}, nil

		default:
			r.cache.set(suppliedID, suppliedID, false)
			return outcome{tenantID: suppliedID}, nil
		}
	})

	out := v.(outcome)
	return out.tenantID, out.resolved
}

// Invalidate drops a cached resolution, forcing the next Resolve to consult
// the primary store again. Used when a tenant is deleted.
func (r *Resolver) Invalidate(suppliedID string) {
	r.cache.invalidate(suppliedID)
}

// CacheLen reports the number of cached resolutions.
func (r *Resolver) CacheLen() int {
	return r.cache.len()
}
