// Package embed turns chunk and query text into vectors.
//
// Providers: Gemini (remote, default), Ollama (local HTTP) and a static
// hash embedder that needs neither network nor model. Every provider
// returns vectors in input order, one per input text.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// MinBatchSize is the minimum allowed batch size
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size
	MaxBatchSize = 256

	// DefaultBatchSize is the number of chunk texts sent per embedding call
	DefaultBatchSize = 64

	// DefaultTimeout bounds a single embedding request
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry count for query embeddings
	DefaultMaxRetries = 3
)

// StaticDimensions is the embedding dimension for the static embedder.
const StaticDimensions = 256

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, same length and order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, 0 until known
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// clampBatchSize keeps n within [MinBatchSize, MaxBatchSize], using
// DefaultBatchSize for non-positive values.
func clampBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}
