// Package registry maintains the paper identity registry: a JSON list of
// records keyed by citation key, with DOI and normalized title as
// secondary match signals.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/citation"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// Record is one paper identity in the registry.
type Record struct {
	CitationKey string        `json:"citation_key"`
	Title       string        `json:"title"`
	DOI         string        `json:"doi"`
	CSL         *citation.CSL `json:"csl"`
	Topic       string        `json:"topic"`
}

// Load reads the registry file. A missing or empty file yields an empty
// list. Both a bare JSON list and an {"items": [...]} wrapper are accepted.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeFilePermission, "failed to read registry", err).
			WithDetail("path", path)
	}
	return decode(path, data)
}

func decode(path string, data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, corrupt(path, err)
		}
	case '{':
		var wrapped struct {
			Items []Record `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, corrupt(path, err)
		}
		records = wrapped.Items
	default:
		return nil, corrupt(path, nil)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func corrupt(path string, cause error) error {
	return perrors.New(perrors.ErrCodeRegistryCorrupt, "registry is not a JSON list of records", cause).
		WithDetail("path", path).
		WithSuggestion("fix or move the file aside; it is never overwritten while unreadable")
}

// Save writes records as an indented JSON list. The file is replaced
// atomically through a temp file in the same directory.
func Save(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return perrors.InternalError("failed to encode registry", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to create registry dir", err).
			WithDetail("path", dir)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to create temp file", err).
			WithDetail("path", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return perrors.New(perrors.ErrCodeFilePermission, "failed to write registry", err).
			WithDetail("path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to write registry", err).
			WithDetail("path", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to replace registry", err).
			WithDetail("path", path)
	}
	return nil
}

// FindByKey returns the index of the record whose citation key matches key
// case-insensitively, or -1.
func FindByKey(records []Record, key string) int {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return -1
	}
	for i := range records {
		if v := strings.ToLower(strings.TrimSpace(records[i].CitationKey)); v != "" && v == k {
			return i
		}
	}
	return -1
}

// FindByDOI returns the index of the record with an equal DOI, or -1.
// Missing and placeholder DOIs never match.
func FindByDOI(records []Record, doi string) int {
	for i := range records {
		if citation.EqualDOI(records[i].DOI, doi) {
			return i
		}
	}
	return -1
}

// FindByTitle returns the index of the record whose normalized title equals
// the normalized title, or -1. Empty and "unknown" titles never match.
func FindByTitle(records []Record, title string) int {
	want := NormalizeTitle(title)
	if want == "" || want == "unknown" {
		return -1
	}
	for i := range records {
		if NormalizeTitle(records[i].Title) == want {
			return i
		}
	}
	return -1
}

var extSuffix = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)

// NormalizeTitle prepares a title or file name for comparison: a trailing
// extension is removed, '_' and '-' become spaces, whitespace is collapsed
// and the result is case-folded.
func NormalizeTitle(s string) string {
	s = extSuffix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
