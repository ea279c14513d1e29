package index

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Aman-CERP/paperrag/internal/embed"
	"github.com/Aman-CERP/paperrag/internal/store"
)

// fakeEmbedder returns a vector whose first component is the text length,
// so tests can check text-to-vector correspondence.
type fakeEmbedder struct {
	embed.Embedder

	mu        sync.Mutex
	failBatch bool
	failText  string
	shortBy   int // Drop this many vectors from batch replies
	batches   [][]string
	singles   []string
}

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.failBatch {
		return nil, errors.New("batch rejected")
	}
	vecs := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vecs = append(vecs, vectorFor(t))
	}
	return vecs[:len(vecs)-min(f.shortBy, len(vecs))], nil
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, text)
	if f.failText != "" && strings.Contains(text, f.failText) {
		return nil, errors.New("item rejected")
	}
	return vectorFor(text), nil
}

func (f *fakeEmbedder) Dimensions() int   { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

// fakeSink is an in-memory store.Sink that records every write.
type fakeSink struct {
	papers   []*store.Paper
	chunks   map[string][]*store.Chunk
	calls    []string
	storeErr error
	findErr  error
}

var _ store.Sink = (*fakeSink)(nil)

func newFakeSink() *fakeSink {
	return &fakeSink{chunks: map[string][]*store.Chunk{}}
}

func (s *fakeSink) FindPaper(_ context.Context, doi, citationKey string) (*store.Paper, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, p := range s.papers {
		if doi != "" && strings.EqualFold(p.DOI, doi) {
			return p, nil
		}
		if citationKey != "" && strings.EqualFold(p.CitationKey, citationKey) {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeSink) UpsertPaper(_ context.Context, p *store.Paper) (string, error) {
	s.calls = append(s.calls, "upsert:"+p.ID)
	for _, existing := range s.papers {
		if existing.ID == p.ID {
			return existing.ID, nil
		}
	}
	s.papers = append(s.papers, p)
	return p.ID, nil
}

func (s *fakeSink) StoreChunks(_ context.Context, paperID string, chunks []*store.Chunk) error {
	s.calls = append(s.calls, "chunks:"+paperID)
	if s.storeErr != nil {
		return s.storeErr
	}
	s.chunks[paperID] = chunks
	return nil
}
