// Package annotate writes bibliographic front matter from the registry into
// cleaned Markdown so the indexer can read identity from the document.
package annotate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/citation"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/frontmatter"
	"github.com/Aman-CERP/paperrag/internal/registry"
)

// MaxAuthors bounds the authors list written to the header.
const MaxAuthors = 50

// FieldOrder is the order of keys in generated headers.
var FieldOrder = []string{
	"title", "authors", "doi", "citation_key", "journal", "volume", "issue",
	"pages", "issued", "url", "topic", "source_registry",
}

// Header builds the front matter for rec. Empty values are omitted.
// sourceRegistry records where the metadata came from.
func Header(rec registry.Record, sourceRegistry string) frontmatter.Meta {
	csl := rec.CSL
	if csl == nil {
		csl = &citation.CSL{}
	}

	meta := frontmatter.Meta{}
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			meta[key] = frontmatter.Value{Scalar: v}
		}
	}

	set("title", firstNonEmpty(rec.Title, csl.Title.String()))
	if authors := authorNames(csl.Author); len(authors) > 0 {
		meta["authors"] = frontmatter.Value{List: authors, IsList: true}
	}
	set("doi", firstNonEmpty(rec.DOI, csl.DOI))
	set("citation_key", rec.CitationKey)
	set("journal", csl.ContainerTitle.String())
	set("volume", csl.Volume.String())
	set("issue", csl.Issue.String())
	set("pages", csl.Page.String())
	set("issued", csl.IssuedISO())
	set("url", csl.URL)
	set("topic", rec.Topic)
	set("source_registry", filepath.ToSlash(sourceRegistry))
	return meta
}

func authorNames(agents []citation.Agent) []string {
	var out []string
	for _, a := range agents {
		name := strings.TrimSpace(a.Full)
		if name == "" {
			name = strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		}
		if name != "" {
			out = append(out, name)
		}
		if len(out) == MaxAuthors {
			break
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Apply replaces any existing front matter in text with the header for rec.
func Apply(text string, rec registry.Record, sourceRegistry string) string {
	_, body := frontmatter.SplitRaw(text)
	return frontmatter.Render(Header(rec, sourceRegistry), FieldOrder, body)
}

// KeyFromPath returns the citation key encoded in a
// papers/<key>/md_with_images/<file> path.
func KeyFromPath(path string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(path)))
}

// Result reports the outcome for one file.
type Result struct {
	Path    string
	Key     string
	Updated bool
	Reason  string // why the file was skipped
}

// Annotator adds registry metadata to -RAG.md files.
type Annotator struct {
	records      []registry.Record
	registryPath string
}

// New creates an annotator over a loaded registry.
func New(records []registry.Record, registryPath string) *Annotator {
	return &Annotator{records: records, registryPath: registryPath}
}

// File rewrites path with a fresh header. Files whose key has no registry
// record are skipped.
func (a *Annotator) File(path string) (Result, error) {
	res := Result{Path: path, Key: KeyFromPath(path)}

	i := findExact(a.records, res.Key)
	if i < 0 {
		res.Reason = "no registry entry"
		slog.Info("annotate_skipped", slog.String("path", path), slog.String("key", res.Key))
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, perrors.New(perrors.ErrCodeFileNotFound, "failed to read Markdown", err).
			WithDetail("path", path)
	}
	out := Apply(string(data), a.records[i], a.registryPath)
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return res, perrors.New(perrors.ErrCodeFilePermission, "failed to write Markdown", err).
			WithDetail("path", path)
	}
	res.Updated = true
	slog.Info("annotate_written", slog.String("path", path), slog.String("key", res.Key))
	return res, nil
}

// findExact matches citation keys exactly; directory names are keys as
// written by prepare.
func findExact(records []registry.Record, key string) int {
	for i := range records {
		if records[i].CitationKey == key {
			return i
		}
	}
	return -1
}
