package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/search"
)

// FormatSearchResults renders search results as markdown for clients that
// only read text content.
func FormatSearchResults(query string, results []*search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No papers matched \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Paper results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d chunk", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s", i+1, r.CitationKey)
		if r.Section != "" {
			fmt.Fprintf(&sb, " > %s", r.Section)
		}
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "**DOI:** %s | **Score:** %.3f | **Chunk:** %d\n\n", r.DOI, r.Score, r.ChunkIndex)
		sb.WriteString(strings.TrimSpace(r.Text))
		sb.WriteString("\n\n")
		if r.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n\n", r.Source)
		}
	}
	return sb.String()
}

// FormatPaperInfo renders paper metadata as markdown.
func FormatPaperInfo(p *PaperInfoOutput) string {
	var sb strings.Builder
	title := p.Title
	if title == "" {
		title = p.CitationKey
	}
	fmt.Fprintf(&sb, "## %s\n\n", title)
	fmt.Fprintf(&sb, "- **Citation key:** %s\n", p.CitationKey)
	if p.Synthetic {
		fmt.Fprintf(&sb, "- **DOI:** %s (synthetic)\n", p.DOI)
	} else {
		fmt.Fprintf(&sb, "- **DOI:** %s\n", p.DOI)
	}
	if len(p.Authors) > 0 {
		fmt.Fprintf(&sb, "- **Authors:** %s\n", strings.Join(p.Authors, "; "))
	}
	if p.Journal != "" {
		fmt.Fprintf(&sb, "- **Journal:** %s\n", p.Journal)
	}
	if p.Issued != "" {
		fmt.Fprintf(&sb, "- **Issued:** %s\n", p.Issued)
	}
	if p.URL != "" {
		fmt.Fprintf(&sb, "- **URL:** %s\n", p.URL)
	}
	fmt.Fprintf(&sb, "- **Collection:** %s (%d chunks)\n", p.Collection, p.Chunks)
	if p.BibTeX != "" {
		fmt.Fprintf(&sb, "\n```bibtex\n%s\n```\n", strings.TrimSpace(p.BibTeX))
	}
	return sb.String()
}
