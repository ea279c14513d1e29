// Package store persists papers and chunks (SQLite), chunk vectors
// (HNSW or chromem) and a keyword index (SQLite FTS5 or Bleve).
// This is the storage sink for the indexing pipeline and the data
// source for search.
package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultCollection holds chunks of papers without a registry topic.
const DefaultCollection = "journal_papers"

// DefaultInsertBatch is the number of chunks written per transaction.
const DefaultInsertBatch = 256

// ImageRefSeparator joins image references in a single column.
const ImageRefSeparator = "|"

// Paper is one row of papers_meta.
type Paper struct {
	ID          string // Resolved DOI, real or synthetic
	DOI         string
	CitationKey string
	Title       string
	Journal     string
	Issued      string // ISO date
	URL         string
	SourcePath  string
	Collection  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a stored chunk with its vector.
type Chunk struct {
	ID          string
	PaperID     string
	Collection  string
	DOI         string
	CitationKey string
	Section     string
	ChunkIndex  int
	Hash        string
	ImageRefs   []string
	Text        string
	SourcePath  string
	Vector      []float32 // Not persisted in SQLite
}

// Sink is what the indexing pipeline writes to.
type Sink interface {
	// FindPaper returns the paper matching doi or citationKey, or nil.
	FindPaper(ctx context.Context, doi, citationKey string) (*Paper, error)

	// UpsertPaper inserts p, or fills empty fields of the existing row
	// with the same identity. Returns the paper ID.
	UpsertPaper(ctx context.Context, p *Paper) (string, error)

	// StoreChunks replaces the paper's chunks in their collection.
	StoreChunks(ctx context.Context, paperID string, chunks []*Chunk) error
}

// Document is a unit of keyword indexing.
type Document struct {
	ID         string // Chunk ID
	Collection string
	Content    string
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	DocID        string
	Score        float64 // Higher is better
	MatchedTerms []string
}

// KeywordIndex provides BM25 keyword search over chunk text.
type KeywordIndex interface {
	// Index adds or replaces documents
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query; an empty collection searches all
	Search(ctx context.Context, collection, query string, limit int) ([]*KeywordResult, error)

	// Delete removes documents
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed documents
	Count() int

	Close() error
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStore keeps one nearest-neighbour index per collection.
type VectorStore interface {
	// Add inserts vectors; an existing ID is replaced.
	Add(ctx context.Context, collection string, ids []string, vectors [][]float32) error

	// Search finds up to k nearest neighbours in the collection.
	Search(ctx context.Context, collection string, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of vectors in the collection.
	Count(collection string) int

	// Collections lists collection names.
	Collections() []string

	// Flush persists pending changes.
	Flush() error

	Close() error
}

// Stats summarizes store contents.
type Stats struct {
	Papers      int
	Chunks      int
	Collections map[string]int // chunks per collection
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Collection string
	Expected   int
	Got        int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in collection %q: expected %d, got %d (embedding model changed? rebuild with --force-reindex-chunks)",
		e.Collection, e.Expected, e.Got)
}
