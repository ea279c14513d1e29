// Package intake turns PDFs dropped into the input tree into registry
// records: it finds a DOI and title, fetches citation metadata, renames
// each file to its citation key and reconciles the registry.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/citation"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// Title and DOI provenance values reported in Result.
const (
	SourceCrossref  = "crossref_csl"
	SourcePDFMeta   = "pdf_metadata"
	SourceLargest   = "largest_font_heuristic"
	SourceTextRegex = "first_pages_regex"
	SourceSynthetic = "content_hash"
	SourceNone      = "none"
	UnknownTitle    = "Unknown"
)

// Result is the identity extracted from one PDF.
type Result struct {
	Path        string
	Title       string
	DOI         string
	TitleSource string
	DOISource   string
	CSL         *citation.CSL
	CitationKey string
}

// Checker extracts identity from PDFs without any language model.
type Checker struct {
	lookup  citation.Lookup
	pages   int
	extract func(data []byte, pages int) (*PDFInfo, error)
}

// NewChecker creates a checker. lookup may be nil to skip Crossref.
func NewChecker(lookup citation.Lookup) *Checker {
	return &Checker{
		lookup:  lookup,
		pages:   DefaultScanPages,
		extract: ExtractPDF,
	}
}

// Check reads the PDF at path and resolves its identity. Every result has
// a non-empty title, DOI and citation key: without a registered DOI the
// DOI is derived from the file content, and an unknown title falls back
// to the file stem.
func (c *Checker) Check(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeFileNotFound, "failed to read PDF", err).
			WithDetail("path", path)
	}
	info, err := c.extract(data, c.pages)
	if err != nil {
		var pe *perrors.PipelineError
		if errors.As(err, &pe) {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	res := c.resolve(ctx, info)
	res.Path = path

	if !citation.IsRealDOI(res.DOI) {
		res.DOI = citation.SyntheticID(data)
		res.DOISource = SourceSynthetic
		if strings.EqualFold(res.Title, UnknownTitle) {
			res.Title = stem(path)
		}
	}
	res.CitationKey = citation.BuildKey(res.CSL, res.Title)
	return res, nil
}

// resolve picks DOI and title from extracted text and metadata. The DOI is
// citation.NotAvailable when none is found.
func (c *Checker) resolve(ctx context.Context, info *PDFInfo) *Result {
	res := &Result{DOI: citation.NotAvailable, DOISource: SourceNone, TitleSource: SourceNone}

	if doi := citation.ExtractDOI(info.Text); doi != "" {
		res.DOI = doi
		res.DOISource = SourceTextRegex
		if c.lookup != nil {
			csl, err := c.lookup.Lookup(ctx, doi)
			if err != nil {
				slog.Warn("csl_lookup_failed", append([]any{slog.String("doi", doi)}, perrors.LogAttrs(err)...)...)
			} else if csl != nil {
				res.CSL = csl
				if t := strings.TrimSpace(csl.Title.String()); t != "" {
					res.Title, res.TitleSource = t, SourceCrossref
				}
			}
		}
	}
	if res.Title == "" && info.MetaTitle != "" {
		res.Title, res.TitleSource = info.MetaTitle, SourcePDFMeta
	}
	if res.Title == "" && info.LargestFontTitle != "" {
		res.Title, res.TitleSource = info.LargestFontTitle, SourceLargest
	}
	if res.Title == "" {
		res.Title = UnknownTitle
	}
	return res
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
