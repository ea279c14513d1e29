package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/annotate"
	"github.com/Aman-CERP/paperrag/internal/chunk"
	"github.com/Aman-CERP/paperrag/internal/citation"
	"github.com/Aman-CERP/paperrag/internal/cleanup"
	"github.com/Aman-CERP/paperrag/internal/config"
	"github.com/Aman-CERP/paperrag/internal/embed"
	"github.com/Aman-CERP/paperrag/internal/index"
	"github.com/Aman-CERP/paperrag/internal/mcp"
	"github.com/Aman-CERP/paperrag/internal/registry"
	"github.com/Aman-CERP/paperrag/internal/search"
	"github.com/Aman-CERP/paperrag/internal/store"
)

// Integration Tests - these run a converted paper through cleaning,
// annotation, indexing, search and the MCP tools.

const convertedPaper = `# Heart failure outcomes in older adults

## Abstract
Heart failure hospitalizations fell after the intervention.

## Methods
We enrolled 1200 patients with chronic heart failure across twelve sites.

## Funding
Supported by grant HL-0001.

## References
1. Smith J. Prior trial of diuretics. 2019.
`

const heartDOI = "10.1001/jama.2021.1"

func heartRecord() registry.Record {
	return registry.Record{
		CitationKey: "lee2021heart",
		Title:       "Heart failure outcomes in older adults",
		DOI:         heartDOI,
		Topic:       "cardiology",
		CSL: &citation.CSL{
			DOI:            heartDOI,
			Type:           "article-journal",
			Title:          "Heart failure outcomes in older adults",
			ContainerTitle: "JAMA",
			Author:         []citation.Agent{{Family: "Lee", Given: "Ann"}},
		},
	}
}

// writeConverted creates papers/<key>/md_with_images/paper.md.
func writeConverted(t *testing.T, papers, key, content string) string {
	t.Helper()
	dir := filepath.Join(papers, key, "md_with_images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openStore(t *testing.T, dataDir string) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{DataDir: dataDir})
	require.NoError(t, err)
	return s
}

func newRunner(t *testing.T, s *store.Store, emb embed.Embedder, records []registry.Record) *index.Runner {
	t.Helper()
	r, err := index.NewRunner(index.RunnerDependencies{
		Sink:     s,
		Embedder: emb,
		Chunker:  chunk.NewSectionChunker(chunk.Options{}),
		Registry: records,
	})
	require.NoError(t, err)
	return r
}

func TestPipeline_CleanAnnotateIndexSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	// Given: a converted paper and its registry record
	papers := t.TempDir()
	records := []registry.Record{heartRecord()}
	src := writeConverted(t, papers, "lee2021heart", convertedPaper)

	// When: cleaning and annotating it
	cleaner, err := cleanup.NewCleaner(cleanup.Options{})
	require.NoError(t, err)
	rag, created, err := cleaner.CleanFile(src)
	require.NoError(t, err)
	require.True(t, created)

	res, err := annotate.New(records, "input/input_pdf.json").File(rag)
	require.NoError(t, err)
	require.True(t, res.Updated)

	// Then: references and boilerplate are gone, metadata is present
	cleaned, err := os.ReadFile(rag)
	require.NoError(t, err)
	assert.Contains(t, string(cleaned), `doi: "`+heartDOI+`"`)
	assert.NotContains(t, string(cleaned), "Prior trial of diuretics")
	assert.NotContains(t, string(cleaned), "HL-0001")

	// When: indexing the papers directory into a persistent store
	dataDir := t.TempDir()
	s := openStore(t, dataDir)
	emb := embed.NewStaticEmbedder()
	sum, err := newRunner(t, s, emb, records).Run(ctx, index.Options{PapersDir: papers, PrependSection: true})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Processed)
	assert.Equal(t, "cardiology", sum.Outcomes[0].Collection)
	require.NoError(t, s.Close())

	// Then: a reopened store answers hybrid queries with provenance
	s = openStore(t, dataDir)
	t.Cleanup(func() { _ = s.Close() })
	engine, err := search.NewEngineForStore(s, emb, search.DefaultConfig())
	require.NoError(t, err)

	results, err := engine.Search(ctx, "heart failure patients enrolled", search.Options{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, heartDOI, r.DOI)
		assert.Equal(t, "lee2021heart", r.CitationKey)
		assert.Equal(t, "cardiology", r.Collection)
	}

	// And: the collection filter excludes other collections
	none, err := engine.Search(ctx, "heart failure", search.Options{TopK: 5, Collection: "oncology"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// When: asking the MCP tools
	srv, err := mcp.NewServer(engine, s, records, config.NewConfig())
	require.NoError(t, err)

	out, err := srv.CallTool(ctx, "search_papers", map[string]any{"query": "heart failure", "top_k": 2})
	require.NoError(t, err)
	hits := out.(*mcp.SearchPapersOutput)
	require.NotEmpty(t, hits.Results)
	assert.LessOrEqual(t, len(hits.Results), 2)
	assert.Equal(t, heartDOI, hits.Results[0].DOI)

	out, err = srv.CallTool(ctx, "paper_info", map[string]any{"doi": "https://doi.org/" + heartDOI})
	require.NoError(t, err)
	info := out.(*mcp.PaperInfoOutput)

	// Then: stored and registry details are merged
	assert.Equal(t, "lee2021heart", info.CitationKey)
	assert.Equal(t, "cardiology", info.Collection)
	assert.Equal(t, "cardiology", info.Topic)
	assert.Equal(t, sum.Chunks, info.Chunks)
	assert.False(t, info.Synthetic)
	assert.Contains(t, info.BibTeX, "Lee")
}

func TestPipeline_SyntheticIdentityIsStable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	// Given: a cleaned paper without any front matter
	papers := t.TempDir()
	dir := filepath.Join(papers, "anon2020notes", "md_with_images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "notes-RAG.md")
	require.NoError(t, os.WriteFile(path, []byte("## Notes\nField notes on grazing.\n"), 0o644))

	s := openStore(t, "")
	t.Cleanup(func() { _ = s.Close() })
	r := newRunner(t, s, embed.NewStaticEmbedder(), nil)

	// When: indexing twice
	first, err := r.Run(ctx, index.Options{Files: []string{path}})
	require.NoError(t, err)
	second, err := r.Run(ctx, index.Options{Files: []string{path}})
	require.NoError(t, err)

	// Then: the synthetic DOI is reused and the second run skips
	require.Equal(t, 1, first.Processed)
	doi := first.Outcomes[0].Identity.DOI
	assert.False(t, citation.IsRealDOI(doi))
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, doi, second.Outcomes[0].Identity.DOI)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Papers)
	assert.Equal(t, 1, st.Collections[store.DefaultCollection])
}
