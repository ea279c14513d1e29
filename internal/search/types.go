// Package search provides hybrid retrieval over indexed paper chunks,
// combining keyword (BM25) and semantic search with Reciprocal Rank Fusion.
package search

import (
	"context"

	"github.com/Aman-CERP/paperrag/internal/config"
	"github.com/Aman-CERP/paperrag/internal/store"
)

const (
	// DefaultTopK is the number of results returned when none is requested.
	DefaultTopK = 5

	// MaxTopK caps a single request.
	MaxTopK = 100

	// minCandidates is the per-source candidate floor before fusion.
	minCandidates = 20
)

// Searcher runs a query against the index.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]*Result, error)
}

// ChunkSource loads stored chunks for enrichment.
type ChunkSource interface {
	GetChunks(ctx context.Context, ids []string) ([]*store.Chunk, error)
}

// Options configures a search query.
type Options struct {
	// TopK is the maximum number of results (default 5, max 100).
	TopK int

	// Collection restricts results to one collection; empty searches all.
	Collection string

	// Weights overrides the configured keyword/semantic weights.
	Weights *Weights

	// KeywordOnly skips embedding the query.
	KeywordOnly bool
}

// Weights configures the relative importance of keyword vs semantic search.
type Weights struct {
	Keyword  float64
	Semantic float64
}

// DefaultWeights weighs both lists equally, which ranks like plain RRF.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.5, Semantic: 0.5}
}

// Config holds engine defaults.
type Config struct {
	DefaultTopK int
	RRFConstant int
	Weights     Weights
}

// DefaultConfig returns defaults matching config.NewConfig.
func DefaultConfig() Config {
	return Config{
		DefaultTopK: DefaultTopK,
		RRFConstant: DefaultRRFConstant,
		Weights:     DefaultWeights(),
	}
}

// ConfigFromSearch builds an engine Config from the search config section.
func ConfigFromSearch(cfg config.SearchConfig) Config {
	c := DefaultConfig()
	if cfg.TopK > 0 {
		c.DefaultTopK = cfg.TopK
	}
	if cfg.RRFConstant > 0 {
		c.RRFConstant = cfg.RRFConstant
	}
	return c
}

// Result is one retrieved chunk with its provenance and scores.
type Result struct {
	ChunkID     string   `json:"chunk_id"`
	Score       float64  `json:"score"`
	Text        string   `json:"text"`
	Section     string   `json:"section"`
	DOI         string   `json:"doi"`
	CitationKey string   `json:"citation_key"`
	Source      string   `json:"source"`
	ChunkIndex  int      `json:"chunk_index"`
	Collection  string   `json:"collection"`
	ImageRefs   []string `json:"image_refs,omitempty"`

	KeywordScore float64  `json:"keyword_score,omitempty"`
	KeywordRank  int      `json:"keyword_rank,omitempty"`
	VecScore     float64  `json:"vector_score,omitempty"`
	VecRank      int      `json:"vector_rank,omitempty"`
	InBothLists  bool     `json:"-"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}
