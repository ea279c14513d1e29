package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/config"
	"github.com/Aman-CERP/paperrag/internal/embed"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/store"
)

type testDoc struct {
	paper      string
	collection string
	section    string
	text       string
}

var corpus = []testDoc{
	{"10.1234/soil", "soil", "Methods", "Nitrogen fixation was measured in legume root nodules."},
	{"10.1234/soil", "soil", "Results", "Grassland soils sequestered more carbon than cropland."},
	{"10.5555/sea", "marine", "Introduction", "Nitrogen cycling in coastal sediments drives productivity."},
}

// indexedEngine builds an in-memory store holding corpus and an engine over it.
func indexedEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	emb := embed.NewStaticEmbedder()
	byPaper := map[string][]*store.Chunk{}
	for _, d := range corpus {
		vec, err := emb.Embed(ctx, d.text)
		require.NoError(t, err)
		byPaper[d.paper] = append(byPaper[d.paper], &store.Chunk{
			Collection:  d.collection,
			DOI:         d.paper,
			CitationKey: "key-" + d.collection,
			Section:     d.section,
			ChunkIndex:  len(byPaper[d.paper]),
			Text:        d.text,
			SourcePath:  "papers/" + d.collection + "/x-RAG.md",
			Vector:      vec,
		})
	}
	for paper, chunks := range byPaper {
		require.NoError(t, s.StoreChunks(ctx, paper, chunks))
	}

	e, err := NewEngineForStore(s, emb, DefaultConfig())
	require.NoError(t, err)
	return e, s
}

// TS01: hybrid search

func TestEngine_Search_ReturnsProvenance(t *testing.T) {
	e, _ := indexedEngine(t)

	// When: searching for a term in one chunk
	results, err := e.Search(context.Background(), "legume nodules", Options{TopK: 2})

	// Then: that chunk ranks first with its provenance
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	top := results[0]
	assert.Equal(t, "10.1234/soil", top.DOI)
	assert.Equal(t, "Methods", top.Section)
	assert.Equal(t, 0, top.ChunkIndex)
	assert.Equal(t, "papers/soil/x-RAG.md", top.Source)
	assert.Equal(t, "key-soil", top.CitationKey)
	assert.Contains(t, top.Text, "legume")
	assert.Equal(t, 1.0, top.Score)
	assert.Equal(t, 1, top.KeywordRank)
}

func TestEngine_Search_CollectionFilter(t *testing.T) {
	e, _ := indexedEngine(t)

	results, err := e.Search(context.Background(), "nitrogen", Options{Collection: "marine"})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "marine", r.Collection)
	}
}

func TestEngine_Search_AllCollections(t *testing.T) {
	e, _ := indexedEngine(t)

	results, err := e.Search(context.Background(), "nitrogen", Options{TopK: 10})

	require.NoError(t, err)
	collections := map[string]bool{}
	for _, r := range results {
		collections[r.Collection] = true
	}
	assert.True(t, collections["soil"])
	assert.True(t, collections["marine"])
}

func TestEngine_Search_EmptyQuery(t *testing.T) {
	e, _ := indexedEngine(t)

	_, err := e.Search(context.Background(), "   ", Options{})

	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeQueryEmpty, perrors.GetCode(err))
}

func TestEngine_Search_DefaultTopK(t *testing.T) {
	e, s := indexedEngine(t)
	ctx := context.Background()

	// Given: more matching chunks than the default
	emb := embed.NewStaticEmbedder()
	var chunks []*store.Chunk
	for i := 0; i < 8; i++ {
		vec, err := emb.Embed(ctx, "phosphorus")
		require.NoError(t, err)
		chunks = append(chunks, &store.Chunk{Collection: "soil", ChunkIndex: i, Text: "phosphorus uptake", Vector: vec})
	}
	require.NoError(t, s.StoreChunks(ctx, "10.1234/p", chunks))

	results, err := e.Search(ctx, "phosphorus", Options{})

	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

// TS02: degradation

type failingKeywords struct{ store.KeywordIndex }

func (failingKeywords) Search(context.Context, string, string, int) ([]*store.KeywordResult, error) {
	return nil, errors.New("fts unavailable")
}

type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestEngine_Search_KeywordFailure_FallsBackToVectors(t *testing.T) {
	_, s := indexedEngine(t)
	e, err := NewEngine(failingKeywords{s.Keywords()}, s.Vectors(), embed.NewStaticEmbedder(), s.Meta(), DefaultConfig())
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "nitrogen fixation legume root nodules", Options{Collection: "soil"})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].KeywordRank)
	assert.Equal(t, 1, results[0].VecRank)
}

func TestEngine_Search_EmbedFailure_FallsBackToKeywords(t *testing.T) {
	_, s := indexedEngine(t)
	e, err := NewEngine(s.Keywords(), s.Vectors(), failingEmbedder{}, s.Meta(), DefaultConfig())
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "sediments", Options{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10.5555/sea", results[0].DOI)
}

func TestEngine_Search_BothFail(t *testing.T) {
	_, s := indexedEngine(t)
	e, err := NewEngine(failingKeywords{s.Keywords()}, s.Vectors(), failingEmbedder{}, s.Meta(), DefaultConfig())
	require.NoError(t, err)

	_, err = e.Search(context.Background(), "nitrogen", Options{})

	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeSearchFailed, perrors.GetCode(err))
}

func TestEngine_NilEmbedder_KeywordOnly(t *testing.T) {
	_, s := indexedEngine(t)
	e, err := NewEngine(s.Keywords(), s.Vectors(), nil, s.Meta(), Config{})
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "grassland", Options{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Results", results[0].Section)
}

// TS03: construction

func TestNewEngine_NilDependencies(t *testing.T) {
	_, s := indexedEngine(t)

	_, err := NewEngine(nil, s.Vectors(), nil, s.Meta(), Config{})
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(s.Keywords(), nil, nil, s.Meta(), Config{})
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(s.Keywords(), s.Vectors(), nil, nil, Config{})
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestConfigFromSearch(t *testing.T) {
	c := ConfigFromSearch(config.SearchConfig{TopK: 7, RRFConstant: 30})
	assert.Equal(t, 7, c.DefaultTopK)
	assert.Equal(t, 30, c.RRFConstant)

	c = ConfigFromSearch(config.SearchConfig{})
	assert.Equal(t, DefaultTopK, c.DefaultTopK)
	assert.Equal(t, DefaultRRFConstant, c.RRFConstant)
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "short", truncateQuery("short", 10))
	assert.Equal(t, "abc...", truncateQuery("abcdef", 3))
}
