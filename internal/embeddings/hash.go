package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic local embedder.
//
// It hashes word tokens into a fixed number of buckets and L2-normalizes
// the result, so identical texts always produce identical unit vectors and
// texts sharing vocabulary land near each other. It captures no semantics
// beyond token overlap; it exists so the cache layer runs self-contained
// without a model runtime or an API key.
type HashEmbedder struct {
	vectorSize int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of the given
// dimensionality.
func NewHashEmbedder(vectorSize int) *HashEmbedder {
	if vectorSize <= 0 {
		vectorSize = 384
	}
	return &HashEmbedder{vectorSize: vectorSize}
}

// EmbedDocuments implements Embedder.
func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

// EmbedQuery implements Embedder.
func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// embed builds a normalized bag-of-tokens vector.
func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.vectorSize)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.vectorSize)]++
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		// Degenerate input: return a fixed unit vector so downstream
		// cosine math stays defined.
		vec[0] = 1
		return vec
	}

	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
