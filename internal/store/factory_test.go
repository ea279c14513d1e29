package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/config"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

func testChunks(n int, collection string, dims int) []*Chunk {
	chunks := make([]*Chunk, n)
	for i := range chunks {
		vec := make([]float32, dims)
		vec[i%dims] = 1
		chunks[i] = &Chunk{
			Collection:  collection,
			DOI:         "10.1234/abc",
			CitationKey: "smith2020",
			ChunkIndex:  i,
			Hash:        "h",
			Text:        "nitrogen fixation chunk",
			Vector:      vec,
		}
	}
	return chunks
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TS01: backend selection

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		vector  VectorBackend
		keyword KeywordBackend
	}{
		{"", ""},
		{VectorBackendHNSW, KeywordBackendBleve},
		{VectorBackendChromem, KeywordBackendSQLite},
	}
	for _, tt := range tests {
		t.Run(string(tt.vector)+"/"+string(tt.keyword), func(t *testing.T) {
			s := openTestStore(t, Options{DataDir: t.TempDir(), VectorBackend: tt.vector, KeywordBackend: tt.keyword})
			ctx := context.Background()

			require.NoError(t, s.StoreChunks(ctx, "10.1234/abc", testChunks(3, "soil", 4)))
			assert.Equal(t, 3, s.Vectors().Count("soil"))
			assert.Equal(t, 3, s.Keywords().Count())
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{VectorBackend: "faiss"})
	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeStorageFailed, perrors.GetCode(err))

	_, err = Open(Options{KeywordBackend: "lucene"})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.VectorBackend = "Chromem"

	opts := OptionsFromConfig("/proj", cfg)

	assert.Equal(t, VectorBackendChromem, opts.VectorBackend)
	assert.Equal(t, KeywordBackendSQLite, opts.KeywordBackend)
	assert.Equal(t, config.Resolve("/proj", cfg.Paths.Data), opts.DataDir)
	assert.Equal(t, cfg.Storage.InsertBatch, opts.InsertBatch)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	s, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.True(t, Exists(dir))
}

// TS02: chunk replacement

func TestStore_StoreChunks_ReplacesPrevious(t *testing.T) {
	s := openTestStore(t, Options{InsertBatch: 2})
	ctx := context.Background()

	// Given: a paper indexed with five chunks
	require.NoError(t, s.StoreChunks(ctx, "10.1234/abc", testChunks(5, "soil", 8)))
	ids, err := s.Meta().ChunkIDs(ctx, "10.1234/abc", "soil")
	require.NoError(t, err)
	require.Len(t, ids, 5)

	old := ids

	// When: it is re-indexed with two chunks
	fresh := testChunks(2, "soil", 8)
	require.NoError(t, s.StoreChunks(ctx, "10.1234/abc", fresh))

	// Then: only the new chunks remain in every backend
	ids, err = s.Meta().ChunkIDs(ctx, "10.1234/abc", "soil")
	require.NoError(t, err)
	assert.Equal(t, []string{fresh[0].ID, fresh[1].ID}, ids)
	for _, id := range ids {
		assert.NotContains(t, old, id)
	}
	assert.Equal(t, 2, s.Vectors().Count("soil"))
	assert.Equal(t, 2, s.Keywords().Count())

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Chunks)
}

// failingVectors fails Add once armed.
type failingVectors struct {
	VectorStore
	fail bool
}

func (f *failingVectors) Add(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.VectorStore.Add(ctx, collection, ids, vectors)
}

func TestStore_StoreChunks_FailedReplacementKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	meta, err := OpenSQLite("")
	require.NoError(t, err)
	hnswStore, err := NewHNSWVectorStore("")
	require.NoError(t, err)
	vectors := &failingVectors{VectorStore: hnswStore}
	s := NewStore(meta, vectors, meta.Keyword(), 2)
	t.Cleanup(func() { _ = s.Close() })

	// Given: a paper stored with four chunks
	require.NoError(t, s.StoreChunks(ctx, "10.1234/abc", testChunks(4, "soil", 8)))
	before, err := s.Meta().ChunkIDs(ctx, "10.1234/abc", "soil")
	require.NoError(t, err)
	require.Len(t, before, 4)

	// When: a forced replacement fails while writing vectors
	vectors.fail = true
	err = s.StoreChunks(ctx, "10.1234/abc", testChunks(3, "soil", 8))

	// Then: the error is reported and the previous chunks are untouched
	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeStorageFailed, perrors.GetCode(err))

	after, err := s.Meta().ChunkIDs(ctx, "10.1234/abc", "soil")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 4, s.Vectors().Count("soil"))
	assert.Equal(t, 4, s.Keywords().Count())

	n, err := s.CountChunks(ctx, "10.1234/abc")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// And: a later replacement still succeeds
	vectors.fail = false
	require.NoError(t, s.StoreChunks(ctx, "10.1234/abc", testChunks(3, "soil", 8)))
	assert.Equal(t, 3, s.Vectors().Count("soil"))
	assert.Equal(t, 3, s.Keywords().Count())
}

func TestStore_StoreChunks_DefaultCollectionAndPaperID(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	chunks := testChunks(1, "", 4)

	require.NoError(t, s.StoreChunks(ctx, "doc:abc", chunks))

	assert.Equal(t, DefaultCollection, chunks[0].Collection)
	assert.Equal(t, "doc:abc", chunks[0].PaperID)
	got, err := s.Meta().GetChunks(ctx, []string{chunks[0].ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "smith2020", got[0].CitationKey)
}

func TestStore_StoreChunks_DimensionMismatch(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.StoreChunks(ctx, "p1", testChunks(1, "soil", 4)))

	err := s.StoreChunks(ctx, "p2", testChunks(1, "soil", 3))

	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeDimensionMismatch, perrors.GetCode(err))
}

func TestStore_UpsertAndFind(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	id, err := s.UpsertPaper(ctx, &Paper{DOI: "10.1234/abc", CitationKey: "smith2020"})
	require.NoError(t, err)

	p, err := s.FindPaper(ctx, "", "SMITH2020")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ID)
}

func TestChunkID_Stable(t *testing.T) {
	a := ChunkID("10.1234/abc", "soil", 0, "g1")
	assert.Len(t, a, 32)
	assert.Equal(t, a, ChunkID("10.1234/abc", "soil", 0, "g1"))
	assert.NotEqual(t, a, ChunkID("10.1234/abc", "soil", 1, "g1"))
	assert.NotEqual(t, a, ChunkID("10.1234/abc", "marine", 0, "g1"))
	assert.NotEqual(t, a, ChunkID("10.1234/abc", "soil", 0, "g2"))
}
