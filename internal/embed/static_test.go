package embed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TS01: Basic Embedding
// ============================================================================

func TestStaticEmbedder_Embed_ReturnsNormalizedVector(t *testing.T) {
	// Given: static embedder
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	// When: I embed a sentence
	embedding, err := embedder.Embed(context.Background(), "Early treatment reduced mortality.")

	// Then: a 256-dimension unit vector is returned
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}

// ============================================================================
// TS02: Deterministic Output
// ============================================================================

func TestStaticEmbedder_Embed_DeterministicAcrossInstances(t *testing.T) {
	text := "Randomized trial of aspirin in 400 patients"

	// When: two embedders embed the same text
	a, err := NewStaticEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)
	b, err := NewStaticEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)

	// Then: vectors are identical
	assert.Equal(t, a, b)
}

// ============================================================================
// TS03: Similarity
// ============================================================================

func TestStaticEmbedder_SimilarText_HasHigherSimilarity(t *testing.T) {
	embedder := NewStaticEmbedder()
	ctx := context.Background()

	query, _ := embedder.Embed(ctx, "aspirin dose in stroke patients")
	related, _ := embedder.Embed(ctx, "Patients with stroke received a low aspirin dose.")
	unrelated, _ := embedder.Embed(ctx, "Quarterly revenue grew in the retail segment.")

	// Then: the related sentence scores higher
	assert.Greater(t, cosineSimilarity(query, related), cosineSimilarity(query, unrelated))
}

// ============================================================================
// TS04: Empty Input
// ============================================================================

func TestStaticEmbedder_Embed_BlankInput_ReturnsZeroVector(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		embedding, err := NewStaticEmbedder().Embed(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, embedding, StaticDimensions)
		for _, v := range embedding {
			assert.Zero(t, v)
		}
	}
}

// ============================================================================
// TS05: Tokenization
// ============================================================================

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"words lowercased", "The Heart Rate", []string{"the", "heart", "rate"}},
		{"punctuation splits", "COVID-19, (n=40)", []string{"covid", "19", "n", "40"}},
		{"non-ascii letters", "Müller étude", []string{"müller", "étude"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	got := filterStopWords([]string{"the", "effect", "of", "a", "x", "dose"})
	assert.Equal(t, []string{"effect", "dose"}, got)
}

func TestExtractNgrams_RuneAware(t *testing.T) {
	assert.Equal(t, []string{"müe", "üet"}, extractNgrams("müet", 3))
	assert.Empty(t, extractNgrams("ab", 3))
}

// ============================================================================
// TS06: Batch and Lifecycle
// ============================================================================

func TestStaticEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	embedder := NewStaticEmbedder()
	ctx := context.Background()
	texts := []string{"first chunk", "", "third chunk"}

	batch, err := embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "position %d", i)
	}
}

func TestStaticEmbedder_EmbedBatch_EmptyList_ReturnsEmpty(t *testing.T) {
	batch, err := NewStaticEmbedder().EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestStaticEmbedder_Close(t *testing.T) {
	// Given: a closed embedder
	embedder := NewStaticEmbedder()
	require.NoError(t, embedder.Close())
	require.NoError(t, embedder.Close())

	// Then: it is unavailable and refuses work
	assert.False(t, embedder.Available(context.Background()))
	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
	_, err = embedder.EmbedBatch(context.Background(), []string{"text"})
	assert.Error(t, err)
}

func TestStaticEmbedder_Metadata(t *testing.T) {
	embedder := NewStaticEmbedder()
	assert.Equal(t, StaticDimensions, embedder.Dimensions())
	assert.Equal(t, "static", embedder.ModelName())
	assert.True(t, embedder.Available(context.Background()))
}

func TestStaticEmbedder_Embed_LongText_NoError(t *testing.T) {
	long := strings.Repeat("Patients were followed for twelve months. ", 500)
	embedding, err := NewStaticEmbedder().Embed(context.Background(), long)
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
}
