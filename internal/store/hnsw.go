package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

const (
	hnswExt     = ".hnsw"
	hnswMetaExt = ".meta"

	defaultHNSWM        = 16
	defaultHNSWEfSearch = 64
)

// HNSWVectorStore implements VectorStore with one coder/hnsw graph per
// collection. Graphs persist to <dir>/<collection>.hnsw with ID mappings
// in a .meta gob file beside it. An empty dir keeps everything in memory.
type HNSWVectorStore struct {
	mu          sync.RWMutex
	dir         string
	collections map[string]*hnswCollection
	closed      bool
}

type hnswCollection struct {
	graph *hnsw.Graph[uint64]
	dims  int

	// ID mapping (string <-> uint64)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	dirty bool
}

// hnswMetadata stores ID mappings for persistence.
type hnswMetadata struct {
	Collection string
	Dimensions int
	IDMap      map[string]uint64
	NextKey    uint64
}

// Verify interface implementation at compile time
var _ VectorStore = (*HNSWVectorStore)(nil)

// NewHNSWVectorStore opens every collection found in dir.
func NewHNSWVectorStore(dir string) (*HNSWVectorStore, error) {
	s := &HNSWVectorStore{dir: dir, collections: make(map[string]*hnswCollection)}
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*"+hnswExt))
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		col, name, err := loadHNSWCollection(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(p), err)
		}
		s.collections[name] = col
	}
	return s, nil
}

func newHNSWCollection(dims int) *hnswCollection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = defaultHNSWM
	graph.EfSearch = defaultHNSWEfSearch
	graph.Ml = 0.25
	return &hnswCollection{
		graph:  graph,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts vectors. The first vector fixes the collection's dimension.
// An existing ID is replaced.
func (s *HNSWVectorStore) Add(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
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

	col, ok := s.collections[collection]
	if !ok {
		col = newHNSWCollection(len(vectors[0]))
	}
	for _, v := range vectors {
		if len(v) != col.dims {
			return ErrDimensionMismatch{Collection: collection, Expected: col.dims, Got: len(v)}
		}
	}
	s.collections[collection] = col

	for i, id := range ids {
		// Lazy deletion: deleting the last node breaks coder/hnsw graphs
		if existingKey, exists := col.idMap[id]; exists {
			delete(col.keyMap, existingKey)
			delete(col.idMap, id)
		}

		key := col.nextKey
		col.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		col.graph.Add(hnsw.MakeNode(key, vec))
		col.idMap[id] = key
		col.keyMap[key] = id
	}
	col.dirty = true
	return nil
}

// Search finds up to k nearest live vectors in the collection.
// An unknown collection yields no results.
func (s *HNSWVectorStore) Search(ctx context.Context, collection string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	col, ok := s.collections[collection]
	if !ok || k <= 0 || len(col.idMap) == 0 {
		return []*VectorResult{}, nil
	}
	if len(query) != col.dims {
		return nil, ErrDimensionMismatch{Collection: collection, Expected: col.dims, Got: len(query)}
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeVectorInPlace(q)

	// Over-fetch by the orphan count so lazy-deleted nodes don't crowd out hits
	orphans := col.graph.Len() - len(col.idMap)
	nodes := col.graph.Search(q, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, live := col.keyMap[node.Key]
		if !live {
			continue
		}
		distance := col.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes vectors by ID using lazy deletion.
func (s *HNSWVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		if key, exists := col.idMap[id]; exists {
			delete(col.keyMap, key)
			delete(col.idMap, id)
			col.dirty = true
		}
	}
	return nil
}

// Count returns the number of live vectors in the collection.
func (s *HNSWVectorStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	if col, ok := s.collections[collection]; ok {
		return len(col.idMap)
	}
	return 0
}

// Collections lists collection names in sorted order.
func (s *HNSWVectorStore) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush writes changed collections to disk. A no-op in memory.
func (s *HNSWVectorStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return s.flushLocked()
}

func (s *HNSWVectorStore) flushLocked() error {
	if s.dir == "" {
		return nil
	}
	for name, col := range s.collections {
		if !col.dirty {
			continue
		}
		path := filepath.Join(s.dir, collectionFileName(name)+hnswExt)
		if err := col.save(name, path); err != nil {
			return fmt.Errorf("failed to save collection %s: %w", name, err)
		}
		col.dirty = false
	}
	return nil
}

// Close flushes pending changes and releases the graphs.
func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	s.collections = nil
	return err
}

// save writes the graph and its metadata via temp file + rename.
func (c *hnswCollection) save(name, path string) error {
	tmpIndexPath := path + ".tmp"
	file, err := os.Create(tmpIndexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := c.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpIndexPath, path); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	meta := hnswMetadata{Collection: name, Dimensions: c.dims, IDMap: c.idMap, NextKey: c.nextKey}
	return writeGob(path+hnswMetaExt, meta)
}

func writeGob(path string, v any) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(v); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func loadHNSWCollection(path string) (*hnswCollection, string, error) {
	metaFile, err := os.Open(path + hnswMetaExt)
	if err != nil {
		return nil, "", fmt.Errorf("open metadata file: %w", err)
	}
	var meta hnswMetadata
	err = gob.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if err != nil {
		return nil, "", fmt.Errorf("decode hnsw metadata: %w", err)
	}

	col := newHNSWCollection(meta.Dimensions)
	col.idMap = meta.IDMap
	col.nextKey = meta.NextKey
	for id, key := range col.idMap {
		col.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires io.ByteReader
	if err := col.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, "", fmt.Errorf("failed to import graph: %w", err)
	}

	name := meta.Collection
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), hnswExt)
	}
	return col, name, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// collectionFileName maps a collection name to a safe file stem.
func collectionFileName(name string) string {
	stem := unsafeFileChars.ReplaceAllString(name, "_")
	if stem == "" || stem == "." || stem == ".." {
		stem = "_"
	}
	return stem
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore maps cosine distance (0 identical, 2 opposite) to 0-1.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
