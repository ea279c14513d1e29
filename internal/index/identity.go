package index

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/citation"
	"github.com/Aman-CERP/paperrag/internal/frontmatter"
	"github.com/Aman-CERP/paperrag/internal/store"
)

// GreyLiterature is the venue assigned to documents without a DOI.
const GreyLiterature = "grey-literature"

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// Identity is the resolved identity and metadata of one document.
type Identity struct {
	DOI         string // Real DOI or synthetic "doc:" identifier
	CitationKey string
	Title       string
	Journal     string
	Issued      string
	URL         string
	SourcePath  string
	Synthetic   bool
}

// ResolveIdentity reads identity fields from front matter. A document
// without a real DOI gets a synthetic identifier derived from its body,
// and any missing key, title, venue or URL is backfilled so every
// document ends up with a stable, non-empty identity.
func ResolveIdentity(meta frontmatter.Meta, body, path string) Identity {
	id := Identity{
		DOI:         meta.First("doi", "DOI"),
		CitationKey: meta.First("citation_key"),
		Title:       meta.First("title"),
		Journal:     meta.First("journal"),
		Issued:      meta.First("issued"),
		URL:         meta.First("url"),
		SourcePath:  path,
	}

	if citation.IsRealDOI(id.DOI) {
		id.DOI = citation.NormalizeDOI(id.DOI)
		return id
	}

	synthetic := citation.SyntheticID([]byte(body))
	id.DOI = synthetic
	id.Synthetic = true

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if id.CitationKey == "" {
		base := nonKeyChars.ReplaceAllString(strings.ToLower(stem), "")
		if base == "" {
			base = "doc"
		}
		id.CitationKey = base + synthetic[len(synthetic)-8:]
	}
	if id.Title == "" {
		id.Title = stem
	}
	if id.Journal == "" {
		id.Journal = GreyLiterature
	}
	if id.URL == "" {
		id.URL = "file://" + path
	}
	return id
}

// Paper converts the identity into a paper row for collection.
func (id Identity) Paper(collection string) *store.Paper {
	return &store.Paper{
		ID:          id.DOI,
		DOI:         id.DOI,
		CitationKey: id.CitationKey,
		Title:       id.Title,
		Journal:     id.Journal,
		Issued:      id.Issued,
		URL:         id.URL,
		SourcePath:  id.SourcePath,
		Collection:  collection,
	}
}
