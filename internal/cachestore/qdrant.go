package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tasklens/doccached/internal/embeddings"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("doccached.cachestore.qdrant")

// pointIDNamespace seeds deterministic point UUIDs derived from chunk ids,
// since Qdrant point ids must be UUIDs or integers.
var pointIDNamespace = uuid.MustParse("8f3c1a52-6f0e-4d7a-9f68-3f6b5a2d9c41")

// QdrantConfig holds configuration for the Qdrant gRPC engine.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port. Default: 6334
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// VectorSize is the embedding dimensionality. Default: 384
	VectorSize int

	// RequestTimeout bounds each gRPC call. Default: 10s
	RequestTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore implements Store against a remote Qdrant server over gRPC.
// Used when the cache must be shared across daemon replicas.
type QdrantStore struct {
	client   *qdrant.Client
	embedder embeddings.Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore connects to Qdrant.
func NewQdrantStore(config QdrantConfig, embedder embeddings.Embedder, logger *zap.Logger) (*QdrantStore, error) {
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

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", ErrUnavailable, err)
	}

	logger.Info("qdrant cache store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Int("vector_size", config.VectorSize),
	)

	return &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger.Named("qdrant"),
	}, nil
}

// GetOrCreate implements Store.
func (s *QdrantStore) GetOrCreate(ctx context.Context, key ScopeKey) (Collection, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.GetOrCreate")
	defer span.End()

	name := key.Namespace()
	span.SetAttributes(attribute.String("collection", name))

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Collection{}, fmt.Errorf("%w: checking collection %s: %v", ErrUnavailable, name, err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.config.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		// A concurrent creator winning the race is fine.
		if err != nil && status.Code(err) != grpccodes.AlreadyExists {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Collection{}, fmt.Errorf("creating collection %s: %w", name, err)
		}
	}

	return Collection{key: key, name: name}, nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, col Collection, chunks []Chunk) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", col.Name()),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyBatch
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{"text": c.Text, "chunk_id": c.ID}
		for k, v := range c.Metadata() {
			payload[k] = v
		}
		points[i] = &qdrant.PointStruct{
			// Deterministic UUID from the chunk id keeps upserts
			// idempotent across sync passes.
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(pointIDNamespace, []byte(c.ID)).String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: col.Name(),
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeOp("qdrant", "upsert", "error")
		return fmt.Errorf("%w: upserting into %s: %v", ErrUnavailable, col.Name(), err)
	}

	observeOp("qdrant", "upsert", "success")
	return nil
}

// Count implements Store.
func (s *QdrantStore) Count(ctx context.Context, col Collection) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: col.Name(),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if status.Code(err) == grpccodes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: counting %s: %v", ErrUnavailable, col.Name(), err)
	}
	return int(count), nil
}

// Query implements Store.
func (s *QdrantStore) Query(ctx context.Context, col Collection, text string, topN int) ([]Result, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", col.Name()),
		attribute.Int("top_n", topN),
	)

	if topN <= 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: col.Name(),
		Query:          qdrant.NewQuery(queryVec...),
		Limit:          qdrant.PtrOf(uint64(topN)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if status.Code(err) == grpccodes.NotFound {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeOp("qdrant", "query", "error")
		return nil, fmt.Errorf("%w: querying %s: %v", ErrUnavailable, col.Name(), err)
	}
	observeQuery("qdrant", time.Since(start))

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, scoredPointToResult(h))
	}
	return results, nil
}

// scoredPointToResult converts a Qdrant scored point into a Result,
// recovering the chunk text and provenance from the payload.
func scoredPointToResult(p *qdrant.ScoredPoint) Result {
	r := Result{
		Score:    p.Score,
		Metadata: make(map[string]string, len(p.Payload)),
	}
	for k, v := range p.Payload {
		sv := v.GetStringValue()
		switch k {
		case "text":
			r.Text = sv
		case "chunk_id":
			r.ID = sv
		default:
			r.Metadata[k] = sv
		}
	}
	return r
}

// DeleteCollection implements Store.
func (s *QdrantStore) DeleteCollection(ctx context.Context, col Collection) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	err := s.client.DeleteCollection(ctx, col.Name())
	if err != nil && status.Code(err) != grpccodes.NotFound {
		return fmt.Errorf("%w: deleting %s: %v", ErrUnavailable, col.Name(), err)
	}
	return nil
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
