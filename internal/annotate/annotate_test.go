package annotate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/citation"
	"github.com/Aman-CERP/paperrag/internal/frontmatter"
	"github.com/Aman-CERP/paperrag/internal/registry"
)

func sampleRecord() registry.Record {
	return registry.Record{
		CitationKey: "lee2020alphastudy",
		Title:       `Alpha "Study"`,
		DOI:         "10.1000/abc",
		Topic:       "cardio",
		CSL: &citation.CSL{
			ContainerTitle: "JAMA",
			Volume:         "333",
			Issue:          "2",
			Page:           "10-20",
			URL:            "https://doi.org/10.1000/abc",
			Issued:         &citation.Date{DateParts: [][]citation.DatePart{{2020, 5}}},
			Author: []citation.Agent{
				{Given: "Ann", Family: "Lee"},
				{Full: "B. Kim"},
				{Name: "Group"},
			},
		},
	}
}

// TS01: header fields follow the fixed order and escape quotes
func TestApply(t *testing.T) {
	got := Apply("---\nold: \"x\"\n---\n\n\n# Intro\ntext\n", sampleRecord(), "input/input_pdf.json")

	want := "---\n" +
		"title: \"Alpha \\\"Study\\\"\"\n" +
		"authors:\n" +
		"  - \"Ann Lee\"\n" +
		"  - \"B. Kim\"\n" +
		"doi: \"10.1000/abc\"\n" +
		"citation_key: \"lee2020alphastudy\"\n" +
		"journal: \"JAMA\"\n" +
		"volume: \"333\"\n" +
		"issue: \"2\"\n" +
		"pages: \"10-20\"\n" +
		"issued: \"2020-05-01\"\n" +
		"url: \"https://doi.org/10.1000/abc\"\n" +
		"topic: \"cardio\"\n" +
		"source_registry: \"input/input_pdf.json\"\n" +
		"---\n\n" +
		"# Intro\ntext\n"
	assert.Equal(t, want, got)
}

func TestApply_ParsesBack(t *testing.T) {
	out := Apply("body", sampleRecord(), "reg.json")

	meta, body := frontmatter.Parse(out)

	assert.Equal(t, `Alpha \"Study\"`, meta.Get("title"), "parser strips one quote layer only")
	assert.Equal(t, []string{"Ann Lee", "B. Kim"}, meta.List("authors"))
	assert.Equal(t, "10.1000/abc", meta.Get("doi"))
	assert.Equal(t, "\nbody", body)
}

func TestHeader_MinimalRecord(t *testing.T) {
	meta := Header(registry.Record{CitationKey: "k", DOI: "doc:0123456789abcdef"}, "r.json")

	assert.Equal(t, "k", meta.Get("citation_key"))
	assert.Equal(t, "doc:0123456789abcdef", meta.Get("doi"))
	assert.NotContains(t, meta, "title")
	assert.NotContains(t, meta, "authors")
	assert.NotContains(t, meta, "issued")
}

func TestHeader_AuthorsCapped(t *testing.T) {
	rec := registry.Record{CSL: &citation.CSL{}}
	for i := 0; i < 60; i++ {
		rec.CSL.Author = append(rec.CSL.Author, citation.Agent{Family: strings.Repeat("x", i+1)})
	}

	assert.Len(t, Header(rec, "").List("authors"), MaxAuthors)
}

func TestKeyFromPath(t *testing.T) {
	assert.Equal(t, "smith2020x", KeyFromPath(filepath.Join("output", "papers", "smith2020x", "md_with_images", "a-RAG.md")))
}

func TestAnnotator_File(t *testing.T) {
	papers := t.TempDir()
	dir := filepath.Join(papers, "lee2020alphastudy", "md_with_images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "paper-RAG.md")
	require.NoError(t, os.WriteFile(path, []byte("# Intro\ntext\n"), 0o644))

	other := filepath.Join(papers, "unknown", "md_with_images", "x-RAG.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	a := New([]registry.Record{sampleRecord()}, "input/input_pdf.json")

	res, err := a.File(path)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	meta, body := frontmatter.Parse(string(data))
	assert.Equal(t, "lee2020alphastudy", meta.Get("citation_key"))
	assert.Equal(t, "\n# Intro\ntext\n", body)

	// Second run is stable
	_, err = a.File(path)
	require.NoError(t, err)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	res, err = a.File(other)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, "no registry entry", res.Reason)
}
