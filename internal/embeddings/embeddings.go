// Package embeddings generates vector embeddings for chunk text.
//
// Two providers are available: "hash", a deterministic local feature-hash
// embedder with no external dependencies (the default, suitable for tests
// and development), and "openai", which calls an OpenAI-compatible
// embeddings endpoint.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidConfig indicates invalid embedder configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrEmbeddingFailed indicates the provider could not produce vectors.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "hash" (default) or "openai".
	Provider string

	// VectorSize is the embedding dimensionality. Default: 384
	VectorSize int

	// OpenAI configures the openai provider.
	OpenAI OpenAIConfig
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "hash"
	}
	if c.VectorSize <= 0 {
		c.VectorSize = 384
	}
}

// New creates an Embedder from the configuration.
func New(cfg Config) (Embedder, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "hash":
		return NewHashEmbedder(cfg.VectorSize), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: hash, openai)", ErrInvalidConfig, cfg.Provider)
	}
}
