package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/paperrag/internal/embed"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/store"
)

// Engine implements hybrid search over the keyword index and the
// per-collection vector store.
type Engine struct {
	keywords store.KeywordIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	chunks   ChunkSource
	config   Config
	fusion   *RRFFusion
}

// Ensure Engine implements Searcher.
var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// NewEngine creates a search engine. The embedder may be nil, which limits
// the engine to keyword search.
func NewEngine(
	keywords store.KeywordIndex,
	vectors store.VectorStore,
	embedder embed.Embedder,
	chunks ChunkSource,
	config Config,
) (*Engine, error) {
	if keywords == nil {
		return nil, fmt.Errorf("%w: keyword index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunk source is required", ErrNilDependency)
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = DefaultTopK
	}
	if config.Weights == (Weights{}) {
		config.Weights = DefaultWeights()
	}
	return &Engine{
		keywords: keywords,
		vectors:  vectors,
		embedder: embedder,
		chunks:   chunks,
		config:   config,
		fusion:   NewRRFFusionWithK(config.RRFConstant),
	}, nil
}

// NewEngineForStore wires an engine to every part of an open store.
func NewEngineForStore(s *store.Store, embedder embed.Embedder, config Config) (*Engine, error) {
	return NewEngine(s.Keywords(), s.Vectors(), embedder, s.Meta(), config)
}

// Search embeds the query, runs vector and keyword search in parallel,
// fuses the two rankings with RRF and returns the top results with their
// chunk text and provenance. One failing source degrades to the other.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, perrors.New(perrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	opts = e.applyDefaults(opts)
	candidates := max(opts.TopK*4, minCandidates)

	keywordResults, vecResults, err := e.parallelSearch(ctx, query, opts, candidates)
	if err != nil {
		if keywordResults == nil && vecResults == nil {
			return nil, perrors.New(perrors.ErrCodeSearchFailed, "search failed", err)
		}
		slog.Warn("search_degraded",
			slog.String("query", truncateQuery(query, 50)),
			slog.String("error", err.Error()))
	}

	fused := e.fusion.Fuse(keywordResults, vecResults, *opts.Weights)
	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}

	results, err := e.enrich(ctx, fused)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeSearchFailed, "failed to load chunks", err)
	}

	slog.Debug("search_completed",
		slog.String("query", truncateQuery(query, 50)),
		slog.String("collection", opts.Collection),
		slog.Int("keyword_hits", len(keywordResults)),
		slog.Int("vector_hits", len(vecResults)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

func (e *Engine) applyDefaults(opts Options) Options {
	if opts.TopK <= 0 {
		opts.TopK = e.config.DefaultTopK
	}
	if opts.TopK > MaxTopK {
		opts.TopK = MaxTopK
	}
	if opts.Weights == nil {
		w := e.config.Weights
		opts.Weights = &w
	}
	if e.embedder == nil {
		opts.KeywordOnly = true
	}
	return opts
}

// parallelSearch executes keyword and vector searches concurrently.
// Returns partial results on single-search failure.
func (e *Engine) parallelSearch(ctx context.Context, query string, opts Options, limit int) (
	keywordResults []*store.KeywordResult,
	vecResults []*store.VectorResult,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var keywordErr, vecErr error

	g.Go(func() error {
		keywordResults, keywordErr = e.keywords.Search(gctx, opts.Collection, query, limit)
		return nil
	})

	if !opts.KeywordOnly {
		g.Go(func() error {
			vecResults, vecErr = e.vectorSearch(gctx, query, opts.Collection, limit)
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}

	if keywordErr != nil && (vecErr != nil || opts.KeywordOnly) {
		return nil, nil, errors.Join(keywordErr, vecErr)
	}
	if keywordErr != nil {
		err = keywordErr
	} else if vecErr != nil {
		err = vecErr
	}
	return keywordResults, vecResults, err
}

// vectorSearch embeds the query and searches one collection, or every
// collection when none is given, merging hits by score.
func (e *Engine) vectorSearch(ctx context.Context, query, collection string, limit int) ([]*store.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	collections := []string{collection}
	if collection == "" {
		collections = e.vectors.Collections()
	}

	var merged []*store.VectorResult
	for _, name := range collections {
		res, err := e.vectors.Search(ctx, name, vec, limit)
		if err != nil {
			var dim store.ErrDimensionMismatch
			if errors.As(err, &dim) {
				slog.Warn("dimension mismatch detected, semantic search disabled for collection",
					slog.String("collection", name),
					slog.Int("expected", dim.Expected),
					slog.Int("got", dim.Got))
			}
			return nil, err
		}
		merged = append(merged, res...)
	}

	if len(collections) > 1 {
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
		if len(merged) > limit {
			merged = merged[:limit]
		}
	}
	return merged, nil
}

// enrich fetches chunk rows for fused results, keeping fused order.
func (e *Engine) enrich(ctx context.Context, fused []*FusedResult) ([]*Result, error) {
	if len(fused) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}

	chunks, err := e.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		c, ok := byID[f.ChunkID]
		if !ok {
			// Index entry without a chunk row; skip it
			continue
		}
		results = append(results, &Result{
			ChunkID:      c.ID,
			Score:        f.RRFScore,
			Text:         c.Text,
			Section:      c.Section,
			DOI:          c.DOI,
			CitationKey:  c.CitationKey,
			Source:       c.SourcePath,
			ChunkIndex:   c.ChunkIndex,
			Collection:   c.Collection,
			ImageRefs:    c.ImageRefs,
			KeywordScore: f.KeywordScore,
			KeywordRank:  f.KeywordRank,
			VecScore:     f.VecScore,
			VecRank:      f.VecRank,
			InBothLists:  f.InBothLists,
			MatchedTerms: f.MatchedTerms,
		})
	}
	return results, nil
}

func truncateQuery(q string, n int) string {
	r := []rune(q)
	if len(r) <= n {
		return q
	}
	return string(r[:n]) + "..."
}
