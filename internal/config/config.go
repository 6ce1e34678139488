// Package config loads and validates doccached configuration.
package config

import (
	"fmt"
	"time"

	"github.com/tasklens/doccached/internal/cachestore"
	"github.com/tasklens/doccached/internal/chunker"
	"github.com/tasklens/doccached/internal/docsync"
	"github.com/tasklens/doccached/internal/embeddings"
	"github.com/tasklens/doccached/internal/identity"
	"github.com/tasklens/doccached/internal/logging"
	"github.com/tasklens/doccached/internal/primarystore"
	"github.com/tasklens/doccached/internal/retrieval"
	"github.com/tasklens/doccached/internal/telemetry"
)

// Config is the full daemon configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Primary    PrimaryConfig    `koanf:"primary"`
	Cache      CacheConfig      `koanf:"cache"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Sync       SyncConfig       `koanf:"sync"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Identity   IdentityConfig   `koanf:"identity"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PrimaryConfig selects the primary store backend.
type PrimaryConfig struct {
	// Provider is "postgres" or "memory" (dev profile).
	Provider     string        `koanf:"provider"`
	DSN          string        `koanf:"dsn"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	MaxOpenConns int           `koanf:"max_open_conns"`
}

// CacheConfig selects the cache store backend.
type CacheConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string             `koanf:"provider"`
	Chromem  ChromemCacheConfig `koanf:"chromem"`
	Qdrant   QdrantCacheConfig  `koanf:"qdrant"`
}

// ChromemCacheConfig holds embedded cache settings.
type ChromemCacheConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantCacheConfig holds remote cache settings.
type QdrantCacheConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	APIKey         string        `koanf:"api_key"`
	UseTLS         bool          `koanf:"use_tls"`
	VectorSize     int           `koanf:"vector_size"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "hash" (deterministic, default) or "openai".
	Provider   string        `koanf:"provider"`
	VectorSize int           `koanf:"vector_size"`
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	MinContentLength int           `koanf:"min_content_length"`
	ChunkSize        int           `koanf:"chunk_size"`
	ChunkOverlap     int           `koanf:"chunk_overlap"`
	LeaseTTL         time.Duration `koanf:"lease_ttl"`

	// RedisAddr enables a shared Redis-backed sync lease for multi-replica
	// deployments. Empty keeps the in-process lease.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// RetrievalConfig holds fallback chain settings.
type RetrievalConfig struct {
	TopN              int           `koanf:"top_n"`
	TierTimeout       time.Duration `koanf:"tier_timeout"`
	PreviewLength     int           `koanf:"preview_length"`
	DisableLegacyTier bool          `koanf:"disable_legacy_tier"`
}

// IdentityConfig holds tenant identity resolver settings.
type IdentityConfig struct {
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	CacheSize int           `koanf:"cache_size"`
}

// TelemetryConfig holds trace export settings. Disabled by default.
type TelemetryConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Endpoint        string        `koanf:"endpoint"`
	Insecure        bool          `koanf:"insecure"`
	ServiceName     string        `koanf:"service_name"`
	ServiceVersion  string        `koanf:"service_version"`
	SampleRate      float64       `koanf:"sample_rate"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9180
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Primary.Provider == "" {
		c.Primary.Provider = "postgres"
	}
	if c.Cache.Provider == "" {
		c.Cache.Provider = "chromem"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "hash"
	}
}

// Validate checks cross-field constraints. Per-component validation happens
// in each component's constructor.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Primary.Provider {
	case "postgres":
		if c.Primary.DSN == "" {
			return fmt.Errorf("primary.dsn is required for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid primary provider %q (supported: postgres, memory)", c.Primary.Provider)
	}
	return nil
}

// LoggingOptions maps to the logging package's config.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// PostgresOptions maps to the primary store's config.
func (c *Config) PostgresOptions() primarystore.PostgresConfig {
	return primarystore.PostgresConfig{
		DSN:          c.Primary.DSN,
		QueryTimeout: c.Primary.QueryTimeout,
		MaxOpenConns: c.Primary.MaxOpenConns,
	}
}

// CacheOptions maps to the cache store factory's config.
func (c *Config) CacheOptions() cachestore.Config {
	return cachestore.Config{
		Provider: c.Cache.Provider,
		Chromem: cachestore.ChromemConfig{
			Path:       c.Cache.Chromem.Path,
			Compress:   c.Cache.Chromem.Compress,
			VectorSize: c.Cache.Chromem.VectorSize,
		},
		Qdrant: cachestore.QdrantConfig{
			Host:           c.Cache.Qdrant.Host,
			Port:           c.Cache.Qdrant.Port,
			APIKey:         c.Cache.Qdrant.APIKey,
			UseTLS:         c.Cache.Qdrant.UseTLS,
			VectorSize:     c.Cache.Qdrant.VectorSize,
			RequestTimeout: c.Cache.Qdrant.RequestTimeout,
		},
	}
}

// EmbeddingOptions maps to the embeddings factory's config.
func (c *Config) EmbeddingOptions() embeddings.Config {
	return embeddings.Config{
		Provider:   c.Embeddings.Provider,
		VectorSize: c.Embeddings.VectorSize,
		OpenAI: embeddings.OpenAIConfig{
			APIKey:  c.Embeddings.APIKey,
			BaseURL: c.Embeddings.BaseURL,
			Model:   c.Embeddings.Model,
			Timeout: c.Embeddings.Timeout,
		},
	}
}

// SyncOptions maps to the sync engine's config.
func (c *Config) SyncOptions() docsync.Config {
	return docsync.Config{
		MinContentLength: c.Sync.MinContentLength,
		Chunking: chunker.Options{
			Size:    c.Sync.ChunkSize,
			Overlap: c.Sync.ChunkOverlap,
		},
		LeaseTTL: c.Sync.LeaseTTL,
	}
}

// RetrievalOptions maps to the fallback chain's config.
func (c *Config) RetrievalOptions() retrieval.Config {
	return retrieval.Config{
		TopN:              c.Retrieval.TopN,
		TierTimeout:       c.Retrieval.TierTimeout,
		PreviewLength:     c.Retrieval.PreviewLength,
		DisableLegacyTier: c.Retrieval.DisableLegacyTier,
	}
}

// IdentityOptions maps to the identity resolver's config.
func (c *Config) IdentityOptions() identity.Config {
	return identity.Config{
		CacheTTL:  c.Identity.CacheTTL,
		CacheSize: c.Identity.CacheSize,
	}
}

// TelemetryOptions maps to the telemetry package's config.
func (c *Config) TelemetryOptions() telemetry.Config {
	return telemetry.Config{
		Enabled:         c.Telemetry.Enabled,
		Endpoint:        c.Telemetry.Endpoint,
		Insecure:        c.Telemetry.Insecure,
		ServiceName:     c.Telemetry.ServiceName,
		ServiceVersion:  c.Telemetry.ServiceVersion,
		SampleRate:      c.Telemetry.SampleRate,
		ShutdownTimeout: c.Telemetry.ShutdownTimeout,
	}
}
