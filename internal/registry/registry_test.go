package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/citation"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

func TestLoad_MissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	records, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, records)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	records, err = Load(empty)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		keys    []string
	}{
		{"bare list", `[{"citation_key": "a"}, {"citation_key": "b"}]`, []string{"a", "b"}},
		{"items wrapper", `{"items": [{"citation_key": "c"}]}`, []string{"c"}},
		{"wrapper without items", `{"other": 1}`, nil},
		{"null topic and csl", `[{"citation_key": "d", "csl": null, "topic": null}]`, []string{"d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "input_pdf.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			records, err := Load(path)

			require.NoError(t, err)
			var keys []string
			for _, r := range records {
				keys = append(keys, r.CitationKey)
			}
			assert.Equal(t, tt.keys, keys)
		})
	}
}

func TestLoad_CorruptIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_pdf.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"citation_key": `), 0o644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeRegistryCorrupt, perrors.GetCode(err))
	assert.True(t, perrors.IsFatal(err))
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "input_pdf.json")
	records := []Record{
		{CitationKey: "smith2020x", Title: "Ärzte & <Patients>", DOI: "10.1/abc", Topic: "cardio",
			CSL: &citation.CSL{Title: "Ärzte & <Patients>"}},
		{CitationKey: "doe2019y", DOI: "doc:0123456789abcdef"},
	}

	require.NoError(t, Save(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"citation_key\": \"smith2020x\""))
	assert.Contains(t, string(data), "Ärzte & <Patients>")
	assert.Contains(t, string(data), `"csl": null`)

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, records, back)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFindByKey(t *testing.T) {
	records := []Record{{CitationKey: "Smith2020X"}, {CitationKey: ""}}

	assert.Equal(t, 0, FindByKey(records, " smith2020x "))
	assert.Equal(t, -1, FindByKey(records, ""))
	assert.Equal(t, -1, FindByKey(records, "other"))
}

func TestFindByDOI(t *testing.T) {
	records := []Record{{DOI: "N/A"}, {DOI: ""}, {DOI: "https://doi.org/10.1/ABC"}}

	assert.Equal(t, 2, FindByDOI(records, "10.1/abc."))
	assert.Equal(t, -1, FindByDOI(records, "N/A"))
	assert.Equal(t, -1, FindByDOI(records, ""))
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My_Great-Paper.pdf", "my great paper"},
		{"  Deep   Learning  ", "deep learning"},
		{"Version 2.0 of Things", "version 2.0 of things"},
		{"Trailing.", "trailing."},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestFindByTitle(t *testing.T) {
	records := []Record{{Title: "Unknown"}, {Title: "My Great Paper"}}

	assert.Equal(t, 1, FindByTitle(records, "my_great-paper.pdf"))
	assert.Equal(t, -1, FindByTitle(records, "Unknown"))
	assert.Equal(t, -1, FindByTitle(records, ""))
	assert.Equal(t, -1, FindByTitle(records, "My Great Papers"))
}
