package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/store"
)

func keywordResults(ids ...string) []*store.KeywordResult {
	results := make([]*store.KeywordResult, len(ids))
	for i, id := range ids {
		results[i] = &store.KeywordResult{DocID: id, Score: float64(len(ids) - i), MatchedTerms: []string{"term"}}
	}
	return results
}

func vecResults(ids ...string) []*store.VectorResult {
	results := make([]*store.VectorResult, len(ids))
	for i, id := range ids {
		results[i] = &store.VectorResult{ID: id, Score: 0.9 - float32(i)*0.1}
	}
	return results
}

func fusedIDs(results []*FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	return ids
}

// TS01: basic fusion

func TestRRFFusion_Basic(t *testing.T) {
	// Given: keyword [A, B, C] and vector [C, A, D]
	fusion := NewRRFFusion()

	// When: fusing with equal weights
	results := fusion.Fuse(keywordResults("A", "B", "C"), vecResults("C", "A", "D"), DefaultWeights())

	// Then: documents in both lists lead and the best score is 1.0
	require.Len(t, results, 4)
	assert.Equal(t, []string{"A", "C", "B", "D"}, fusedIDs(results))
	assert.Equal(t, 1.0, results[0].RRFScore)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.RRFScore, 0.0)
		assert.LessOrEqual(t, r.RRFScore, 1.0)
	}
	assert.True(t, results[0].InBothLists)
	assert.Equal(t, 1, results[0].KeywordRank)
	assert.Equal(t, 2, results[0].VecRank)
}

func TestRRFFusion_Empty(t *testing.T) {
	results := NewRRFFusion().Fuse(nil, nil, DefaultWeights())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

// TS02: one-sided results

func TestRRFFusion_DocumentInOneListOnly(t *testing.T) {
	results := NewRRFFusion().Fuse(keywordResults("A", "B"), vecResults("A", "D"), DefaultWeights())

	byID := make(map[string]*FusedResult)
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	require.Len(t, byID, 3)

	assert.Equal(t, 0, byID["B"].VecRank)
	assert.Equal(t, 0, byID["D"].KeywordRank)
	assert.False(t, byID["B"].InBothLists)

	// B and D each get one real rank 2 plus missing rank 3
	assert.InDelta(t, byID["B"].RRFScore, byID["D"].RRFScore, 1e-12)
	// B wins the tie on keyword score
	assert.Equal(t, []string{"A", "B", "D"}, fusedIDs(results))
}

func TestRRFFusion_SingleSource(t *testing.T) {
	// Given: the vector side failed and returned nothing
	results := NewRRFFusion().Fuse(keywordResults("A", "B", "C"), nil, DefaultWeights())

	// Then: keyword order is kept
	assert.Equal(t, []string{"A", "B", "C"}, fusedIDs(results))
	assert.Equal(t, 1.0, results[0].RRFScore)
}

// TS03: tie-breaking

func TestRRFFusion_TieBreaking_LexicographicByID(t *testing.T) {
	// Given: identical ranks everywhere
	kw := []*store.KeywordResult{{DocID: "Z", Score: 2}}
	vec := []*store.VectorResult{{ID: "A", Score: 0.9}}

	results := NewRRFFusion().Fuse(kw, vec, Weights{Keyword: 0.5, Semantic: 0.5})

	// Then: Z wins on keyword score despite the ID order
	assert.Equal(t, []string{"Z", "A"}, fusedIDs(results))

	kw = []*store.KeywordResult{{DocID: "Z", Score: 0}}
	results = NewRRFFusion().Fuse(kw, vec, Weights{Keyword: 0.5, Semantic: 0.5})
	assert.Equal(t, []string{"A", "Z"}, fusedIDs(results))
}

func TestRRFFusion_Weights(t *testing.T) {
	kw := keywordResults("A", "B")
	vec := vecResults("B", "A")

	tests := []struct {
		name    string
		weights Weights
		first   string
	}{
		{"keyword heavy", Weights{Keyword: 0.9, Semantic: 0.1}, "A"},
		{"semantic heavy", Weights{Keyword: 0.1, Semantic: 0.9}, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := NewRRFFusion().Fuse(kw, vec, tt.weights)
			assert.Equal(t, tt.first, results[0].ChunkID)
		})
	}
}

func TestNewRRFFusionWithK(t *testing.T) {
	assert.Equal(t, 10, NewRRFFusionWithK(10).K)
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(0).K)
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(-5).K)
}
