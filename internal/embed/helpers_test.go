package embed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// mockEmbedder returns a one-dimensional vector holding len(text), so
// tests can check which text produced which vector.
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchSizes []int
	modelName  string
	failBatch  bool
	closed     atomic.Bool
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{modelName: "mock-model"}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	return []float32{float32(len(text))}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.failBatch {
		return nil, errors.New("batch rejected")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                { return 1 }
func (m *mockEmbedder) ModelName() string              { return m.modelName }
func (m *mockEmbedder) Available(context.Context) bool { return !m.closed.Load() }

func (m *mockEmbedder) Close() error {
	m.closed.Store(true)
	return nil
}
