package cachestore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/embeddings"
)

// Config selects and configures a cache store provider.
type Config struct {
	// Provider is "chromem" (default, embedded) or "qdrant" (remote).
	Provider string

	// Chromem configures the embedded provider.
	Chromem ChromemConfig

	// Qdrant configures the remote provider.
	Qdrant QdrantConfig
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	c.Chromem.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
}

// NewStore creates a Store from the configuration.
//
// chromem is the default: embedded, persistent, no external service.
// qdrant is for deployments where multiple doccached replicas must share
// one cache.
func NewStore(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "chromem":
		return NewChromemStore(cfg.Chromem, embedder, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
