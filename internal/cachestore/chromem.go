package cachestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/embeddings"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("doccached.cachestore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go engine.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/doccached/cache"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension. Default: 384
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/doccached/cache"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence. It needs no external service,
// which makes it the default engine: every tenant's collections live under
// one local directory, partitioned by namespace.
type ChromemStore struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with persistent storage.
func NewChromemStore(config ChromemConfig, embedder embeddings.Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	logger.Info("chromem cache store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger.Named("chromem"),
	}, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder for chromem's query path.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// GetOrCreate implements Store.
func (s *ChromemStore) GetOrCreate(ctx context.Context, key ScopeKey) (Collection, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.GetOrCreate")
	defer span.End()

	name := key.Namespace()
	span.SetAttributes(attribute.String("collection", name))

	if _, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Collection{}, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	return Collection{key: key, name: name}, nil
}

// Upsert implements Store. Chunks are embedded in one batch and written
// with their provenance metadata; duplicate ids overwrite.
func (s *ChromemStore) Upsert(ctx context.Context, col Collection, chunks []Chunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", col.Name()),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyBatch
	}

	collection, err := s.db.GetOrCreateCollection(col.Name(), nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("getting collection %s: %w", col.Name(), err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata:  c.Metadata(),
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeOp("chromem", "upsert", "error")
		return fmt.Errorf("upserting %d chunks into %s: %w", len(chunks), col.Name(), err)
	}

	observeOp("chromem", "upsert", "success")
	s.logger.Debug("chunks upserted",
		zap.String("collection", col.Name()),
		zap.Int("count", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Count implements Store.
func (s *ChromemStore) Count(ctx context.Context, col Collection) (int, error) {
	collection := s.db.GetCollection(col.Name(), s.embeddingFunc())
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Query implements Store. An empty collection yields an empty result set.
func (s *ChromemStore) Query(ctx context.Context, col Collection, text string, topN int) ([]Result, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", col.Name()),
		attribute.Int("top_n", topN),
	)

	if topN <= 0 {
		return nil, nil
	}

	collection := s.db.GetCollection(col.Name(), s.embeddingFunc())
	if collection == nil {
		return nil, nil
	}

	// chromem rejects nResults above the collection size.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topN > count {
		topN = count
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	start := time.Now()
	hits, err := collection.QueryEmbedding(ctx, queryVec, topN, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeOp("chromem", "query", "error")
		return nil, fmt.Errorf("querying %s: %w", col.Name(), err)
	}
	observeQuery("chromem", time.Since(start))

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:       h.ID,
			Text:     h.Content,
			Score:    h.Similarity,
			Metadata: h.Metadata,
		}
	}
	return results, nil
}

// DeleteCollection implements Store.
func (s *ChromemStore) DeleteCollection(ctx context.Context, col Collection) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", col.Name()))

	if err := s.db.DeleteCollection(col.Name()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", col.Name(), err)
	}
	return nil
}

// Close implements Store. chromem persists on write, nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}
