// Package cleanup prepares converted Markdown for retrieval: it cuts the
// reference list and drops publisher boilerplate by rule.
package cleanup

import (
	"regexp"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/frontmatter"
)

var referenceHeadings = []string{
	`references`,
	`bibliography`,
	`works\s+cited`,
	`references\s+and\s+notes`,
}

// ReferencePattern compiles the heading matcher for the built-in reference
// headings plus extra (regular expression fragments, blanks ignored).
func ReferencePattern(extra []string) (*regexp.Regexp, error) {
	alts := append([]string(nil), referenceHeadings...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			alts = append(alts, p)
		}
	}
	return regexp.Compile(`(?im)^#{1,6}\s+(?:` + strings.Join(alts, "|") + `)\b`)
}

var defaultReferencePattern = regexp.MustCompile(`(?im)^#{1,6}\s+(?:` + strings.Join(referenceHeadings, "|") + `)\b`)

// StripReferences removes everything from the first reference heading to
// the end of body. The kept text is right-trimmed and newline-terminated.
// Body without such a heading is returned unchanged.
func StripReferences(body string, pattern *regexp.Regexp) string {
	if pattern == nil {
		pattern = defaultReferencePattern
	}
	loc := pattern.FindStringIndex(body)
	if loc == nil {
		return body
	}
	return strings.TrimRight(body[:loc[0]], " \t\r\n") + "\n"
}

// StripDocument applies StripReferences to the body of a document and
// keeps its front matter byte for byte.
func StripDocument(text string, pattern *regexp.Regexp) string {
	header, body := frontmatter.SplitRaw(text)
	return header + StripReferences(body, pattern)
}
