package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TS01: papers_meta upsert and lookup

func TestSQLiteStore_UpsertPaper_Insert(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Given: a paper with a DOI and no explicit ID
	p := &Paper{DOI: "10.1234/abc", CitationKey: "smith2020", Title: "Soil carbon"}

	// When: it is upserted
	id, err := s.UpsertPaper(ctx, p)

	// Then: the DOI becomes the ID and the row is readable
	require.NoError(t, err)
	assert.Equal(t, "10.1234/abc", id)

	got, err := s.GetPaper(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Soil carbon", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_UpsertPaper_FillsOnlyEmptyFields(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertPaper(ctx, &Paper{ID: "10.1234/abc", DOI: "10.1234/abc", Title: "Original"})
	require.NoError(t, err)

	// When: the same paper arrives with a new title and a journal
	id, err := s.UpsertPaper(ctx, &Paper{DOI: "10.1234/ABC", Title: "Changed", Journal: "Nature"})
	require.NoError(t, err)

	// Then: the title stays and the empty journal is filled
	assert.Equal(t, "10.1234/abc", id)
	got, err := s.GetPaper(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, "Nature", got.Journal)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Papers)
}

func TestSQLiteStore_UpsertPaper_NoIdentity(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.UpsertPaper(context.Background(), &Paper{Title: "Anonymous"})
	assert.Error(t, err)
}

func TestSQLiteStore_FindPaper(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	_, err := s.UpsertPaper(ctx, &Paper{DOI: "10.1234/abc", CitationKey: "Smith2020"})
	require.NoError(t, err)
	_, err = s.UpsertPaper(ctx, &Paper{DOI: "10.5555/xyz", CitationKey: "jones2019"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		doi     string
		key     string
		wantDOI string
	}{
		{"doi case-insensitive", "10.1234/ABC", "", "10.1234/abc"},
		{"key case-insensitive", "", "smith2020", "10.1234/abc"},
		{"doi wins over key", "10.5555/xyz", "smith2020", "10.5555/xyz"},
		{"no match", "10.9999/none", "nobody", ""},
		{"empty never matches", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindPaper(ctx, tt.doi, tt.key)
			require.NoError(t, err)
			if tt.wantDOI == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantDOI, got.DOI)
		})
	}
}

// TS02: chunk rows

func TestSQLiteStore_Chunks_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	chunks := []*Chunk{
		{ID: "c1", PaperID: "p", Collection: "soil", ChunkIndex: 1, Hash: "h1", Text: "second", ImageRefs: []string{"a.png", "b.png"}},
		{ID: "c0", PaperID: "p", Collection: "soil", ChunkIndex: 0, Hash: "h0", Text: "first", Section: "Intro"},
		{ID: "c2", PaperID: "p", Collection: "other", ChunkIndex: 0, Hash: "h2", Text: "elsewhere"},
	}

	// When: chunks are inserted in batches of two
	require.NoError(t, s.InsertChunks(ctx, chunks, 2))

	// Then: IDs come back by chunk index within the collection
	ids, err := s.ChunkIDs(ctx, "p", "soil")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, ids)

	// And: GetChunks keeps request order and image refs
	got, err := s.GetChunks(ctx, []string{"c1", "missing", "c0"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, []string{"a.png", "b.png"}, got[0].ImageRefs)
	assert.Equal(t, "Intro", got[1].Section)
	assert.Nil(t, got[1].ImageRefs)

	n, err := s.CountChunks(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Chunks)
	assert.Equal(t, map[string]int{"soil": 2, "other": 1}, st.Collections)

	// When: chunks are deleted
	require.NoError(t, s.DeleteChunks(ctx, []string{"c0", "c1"}))
	ids, err = s.ChunkIDs(ctx, "p", "soil")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TS03: persistence and lifecycle

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", MetaFileName)
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.UpsertPaper(ctx, &Paper{DOI: "10.1234/abc"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.FindPaper(ctx, "10.1234/abc", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteStore_ClosedRejectsCalls(t *testing.T) {
	s, err := OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.FindPaper(context.Background(), "10.1234/abc", "")
	assert.ErrorContains(t, err, "closed")
}
