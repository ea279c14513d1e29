// Package citation resolves bibliographic identity for papers: DOI
// normalization and detection, CSL-JSON metadata from Crossref, citation
// keys and BibTeX export.
package citation

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// NotAvailable is the placeholder stored when no DOI was found.
const NotAvailable = "N/A"

// SyntheticPrefix marks content-derived identifiers that stand in for a DOI.
const SyntheticPrefix = "doc:"

var (
	doiPattern       = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[-._;()/:A-Z0-9]+\b`)
	doiPrefixPattern = regexp.MustCompile(`(?i)^https?://(dx\.)?doi\.org/`)
	unsafeDOIChars   = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// NormalizeDOI strips a resolver URL prefix and surrounding punctuation.
// Case is preserved; compare with EqualDOI.
func NormalizeDOI(raw string) string {
	s := strings.TrimSpace(raw)
	s = doiPrefixPattern.ReplaceAllString(s, "")
	return strings.Trim(s, " \t\r\n.,;)>")
}

// EqualDOI compares two DOIs after normalization, ignoring case.
// Missing and placeholder DOIs never match.
func EqualDOI(a, b string) bool {
	na, nb := NormalizeDOI(a), NormalizeDOI(b)
	if !usable(na) || !usable(nb) {
		return false
	}
	return strings.EqualFold(na, nb)
}

func usable(doi string) bool {
	return doi != "" && !strings.EqualFold(doi, NotAvailable)
}

// ExtractDOI returns the first DOI found in text, normalized, or "".
func ExtractDOI(text string) string {
	m := doiPattern.FindString(text)
	if m == "" {
		return ""
	}
	return NormalizeDOI(m)
}

// IsRealDOI reports whether s is a registered DOI rather than a placeholder
// or synthetic identifier.
func IsRealDOI(s string) bool {
	return strings.HasPrefix(NormalizeDOI(s), "10.")
}

// ValidateDOI normalizes raw for a resolver lookup. It rejects empty input
// and strings without a '/'.
func ValidateDOI(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", perrors.New(perrors.ErrCodeInvalidDOI, "empty DOI", nil)
	}
	doi := doiPrefixPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	if !strings.Contains(doi, "/") {
		return "", perrors.New(perrors.ErrCodeInvalidDOI, "invalid DOI format: "+doi, nil).
			WithSuggestion("a DOI looks like 10.1000/xyz123")
	}
	return doi, nil
}

// SafeDOI turns a DOI into a file name stem.
func SafeDOI(doi string) string {
	return unsafeDOIChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(doi)), "_")
}

// SyntheticID derives a stable stand-in identifier from content bytes.
func SyntheticID(content []byte) string {
	sum := sha256.Sum256(content)
	return SyntheticPrefix + hex.EncodeToString(sum[:])[:16]
}
