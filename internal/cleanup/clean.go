package cleanup

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/frontmatter"
)

// RAGSuffix marks cleaned Markdown ready for indexing.
const RAGSuffix = "-RAG.md"

// dropSections match section titles that carry no scientific content.
var dropSections = []string{
	`article information`,
	`author affiliations`,
	`author contributions`,
	`additional contributions`,
	`group information`,
	`investigators`,
	`clinical trials group`,
	`funder`,
	`sponsor`,
	`funding`,
	`support`,
	`role of the funder`,
	`role of the sponsor`,
	`corresponding author`,
	`conflict`,
	`competing interest`,
	`financial disclosure`,
	`acknowledg?ments?`,
}

// dropLines match single publisher lines anywhere in the body.
var dropLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^jama\.com$`),
	regexp.MustCompile(`(?i)^accepted for publication:.*$`),
	regexp.MustCompile(`(?i)^published online:.*$`),
	regexp.MustCompile(`(?i)^doi:\s*10\.[0-9]{4,9}/.*$`),
	regexp.MustCompile(`(?i)^corresponding author:.*$`),
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Options configures a Cleaner.
type Options struct {
	ExtraReferencePatterns []string
	ExtraDropSections      []string
}

// Cleaner strips references and boilerplate from Markdown documents.
type Cleaner struct {
	refs *regexp.Regexp
	drop *regexp.Regexp
}

// NewCleaner compiles the rule set. Extra patterns are regular expression
// fragments matched case-insensitively.
func NewCleaner(opts Options) (*Cleaner, error) {
	refs, err := ReferencePattern(opts.ExtraReferencePatterns)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeConfigInvalid, "invalid reference pattern", err)
	}
	alts := append(append([]string(nil), dropSections...), nonBlank(opts.ExtraDropSections)...)
	drop, err := regexp.Compile(`(?i)` + strings.Join(alts, "|"))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeConfigInvalid, "invalid drop section pattern", err)
	}
	return &Cleaner{refs: refs, drop: drop}, nil
}

// ReferencePattern returns the compiled reference heading matcher.
func (c *Cleaner) ReferencePattern() *regexp.Regexp {
	return c.refs
}

type section struct {
	level int
	title string // empty for text before the first heading
	lines []string
}

// Clean strips the reference list, drops boilerplate sections and lines,
// and collapses runs of more than two blank lines. Front matter is kept
// as is.
func (c *Cleaner) Clean(text string) string {
	header, body := frontmatter.SplitRaw(text)
	body = StripReferences(body, c.refs)

	var blocks []string
	for _, sec := range parseSections(body) {
		if sec.title != "" && c.drop.MatchString(sec.title) {
			continue
		}
		kept := pruneLines(sec.lines)
		var sb strings.Builder
		if sec.title != "" {
			sb.WriteString(strings.Repeat("#", sec.level) + " " + sec.title)
			if kept != "" {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(kept)
		if sb.Len() > 0 {
			blocks = append(blocks, sb.String())
		}
	}
	if len(blocks) == 0 {
		return header
	}
	if header != "" {
		header += "\n"
	}
	return header + strings.Join(blocks, "\n\n") + "\n"
}

func parseSections(body string) []section {
	var out []section
	var cur *section
	for _, line := range strings.Split(body, "\n") {
		if m := headingPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			out = append(out, section{level: len(m[1]), title: strings.TrimSpace(m[2])})
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			out = append(out, section{level: 1})
			cur = &out[len(out)-1]
		}
		cur.lines = append(cur.lines, strings.TrimRight(line, "\r"))
	}
	return out
}

// pruneLines drops boilerplate lines, keeps at most two consecutive blank
// lines and trims the result.
func pruneLines(lines []string) string {
	out := make([]string, 0, len(lines))
	blank := 0
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if matchesAny(trimmed, dropLines) {
			continue
		}
		if trimmed == "" {
			blank++
			if blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RAGPath returns the cleaned output path for md: <stem>-RAG.md.
func RAGPath(md string) string {
	return strings.TrimSuffix(md, filepath.Ext(md)) + RAGSuffix
}

// CleanFile writes the cleaned form of md next to it. An existing output
// is left alone and reported with created=false.
func (c *Cleaner) CleanFile(md string) (out string, created bool, err error) {
	out = RAGPath(md)
	if _, err := os.Stat(out); err == nil {
		slog.Debug("clean_skipped_existing", slog.String("path", out))
		return out, false, nil
	}
	data, err := os.ReadFile(md)
	if err != nil {
		return "", false, perrors.New(perrors.ErrCodeFileNotFound, "failed to read Markdown", err).
			WithDetail("path", md)
	}
	if err := os.WriteFile(out, []byte(c.Clean(string(data))), 0o644); err != nil {
		return "", false, perrors.New(perrors.ErrCodeFilePermission, "failed to write cleaned Markdown", err).
			WithDetail("path", out)
	}
	slog.Info("clean_written", slog.String("source", md), slog.String("path", out))
	return out, true, nil
}

// DiscoverSources lists papers/*/md_with_images/*.md files that are not
// already cleaned outputs, sorted.
func DiscoverSources(papersDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(papersDir, "*", "md_with_images", "*.md"))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeInvalidPath, "bad papers dir", err)
	}
	out := matches[:0]
	for _, m := range matches {
		if !strings.HasSuffix(m, RAGSuffix) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DiscoverRAG lists papers/*/md_with_images/*-RAG.md files, sorted.
func DiscoverRAG(papersDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(papersDir, "*", "md_with_images", "*"+RAGSuffix))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeInvalidPath, "bad papers dir", err)
	}
	sort.Strings(matches)
	return matches, nil
}
