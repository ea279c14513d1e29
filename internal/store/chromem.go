package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemVectorStore implements VectorStore with chromem-go, one chromem
// collection per paper collection. A persistent DB writes on every change.
type ChromemVectorStore struct {
	mu     sync.RWMutex
	db     *chromem.DB
	dims   map[string]int
	closed bool
}

// Verify interface implementation at compile time
var _ VectorStore = (*ChromemVectorStore)(nil)

// NewChromemVectorStore opens a persistent DB in dir, or an in-memory one
// when dir is empty.
func NewChromemVectorStore(dir string) (*ChromemVectorStore, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	}
	return &ChromemVectorStore{db: db, dims: make(map[string]int)}, nil
}

// Add inserts vectors; chromem replaces documents with an existing ID.
func (s *ChromemVectorStore) Add(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	want, known := s.dims[collection]
	if !known {
		want = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != want {
			return ErrDimensionMismatch{Collection: collection, Expected: want, Got: len(v)}
		}
	}

	col, err := s.db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("failed to open collection %s: %w", collection, err)
	}

	// chromem normalizes in place; hand it copies
	vecs := make([][]float32, len(vectors))
	for i, v := range vectors {
		vecs[i] = append([]float32(nil), v...)
	}
	if err := col.Add(ctx, ids, vecs, nil, nil); err != nil {
		return fmt.Errorf("failed to add vectors: %w", err)
	}
	s.dims[collection] = want
	return nil
}

// Search finds up to k nearest vectors in the collection.
func (s *ChromemVectorStore) Search(ctx context.Context, collection string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	col := s.db.GetCollection(collection, nil)
	if col == nil || k <= 0 {
		return []*VectorResult{}, nil
	}
	if want, ok := s.dims[collection]; ok && len(query) != want {
		return nil, ErrDimensionMismatch{Collection: collection, Expected: want, Got: len(query)}
	}

	// chromem rejects n larger than the collection
	n := min(k, col.Count())
	if n == 0 {
		return []*VectorResult{}, nil
	}

	res, err := col.QueryEmbedding(ctx, append([]float32(nil), query...), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	results := make([]*VectorResult, 0, len(res))
	for _, r := range res {
		distance := 1 - r.Similarity
		results = append(results, &VectorResult{
			ID:       r.ID,
			Distance: distance,
			Score:    distanceToScore(distance),
		})
	}
	return results, nil
}

// Delete removes vectors by ID.
func (s *ChromemVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	col := s.db.GetCollection(collection, nil)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// Count returns the number of vectors in the collection.
func (s *ChromemVectorStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	if col := s.db.GetCollection(collection, nil); col != nil {
		return col.Count()
	}
	return 0
}

// Collections lists collection names in sorted order.
func (s *ChromemVectorStore) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush is a no-op; chromem persists on write.
func (s *ChromemVectorStore) Flush() error { return nil }

// Close marks the store closed.
func (s *ChromemVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
