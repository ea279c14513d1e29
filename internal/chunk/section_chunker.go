package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

// Options configures the section chunker.
type Options struct {
	MaxLen int // Maximum characters per chunk (default: DefaultMaxLen)
}

// SectionChunker walks a Markdown body line by line, tracking a heading
// stack, and emits length-bounded paragraph chunks tagged with the section
// path. Fenced code is not special-cased: a '#' line inside a fence is read
// as a heading.
type SectionChunker struct {
	maxLen int
}

var (
	// Matches headers: # Title, ## Title, etc.
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

	// Matches inline images: ![alt](target)
	imagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^\)]+)\)`)
)

// NewSectionChunker creates a chunker. A non-positive MaxLen uses DefaultMaxLen.
func NewSectionChunker(opts Options) *SectionChunker {
	if opts.MaxLen <= 0 {
		opts.MaxLen = DefaultMaxLen
	}
	return &SectionChunker{maxLen: opts.MaxLen}
}

// MaxLen returns the configured chunk length bound.
func (c *SectionChunker) MaxLen() int {
	return c.maxLen
}

type heading struct {
	level int
	title string
}

// Split partitions body into raw chunks in document order. A heading pops
// every open heading at the same or a deeper level before it is pushed.
// A heading with a blank title is kept as body text.
func (c *SectionChunker) Split(body string) []Raw {
	var out []Raw
	var stack []heading
	var block []string

	flush := func() {
		if len(block) > 0 {
			out = append(out, c.flushBlock(block, sectionPath(stack))...)
		}
		block = block[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			block = append(block, line)
			continue
		}
		title := strings.TrimSpace(m[2])
		if title == "" {
			block = append(block, line)
			continue
		}

		flush()
		level := len(m[1])
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading{level: level, title: title})
	}
	flush()

	return out
}

func sectionPath(stack []heading) []string {
	if len(stack) == 0 {
		return nil
	}
	path := make([]string, len(stack))
	for i, h := range stack {
		path[i] = h.title
	}
	return path
}

// flushBlock turns the accumulated lines into chunks tagged with path.
func (c *SectionChunker) flushBlock(lines []string, path []string) []Raw {

	var out []Raw
	for _, para := range paragraphs(lines) {
		images := extractImages(para)
		for _, part := range SmartSplit(para, c.maxLen) {
			out = append(out, Raw{
				Text:      part,
				Path:      path,
				ImageRefs: images,
			})
		}
	}
	return out
}

// paragraphs splits lines on whitespace-only lines and trims each paragraph.
// Empty paragraphs are dropped.
func paragraphs(lines []string) []string {
	var out []string
	var cur []string

	emit := func() {
		if text := strings.TrimSpace(strings.Join(cur, "\n")); text != "" {
			out = append(out, text)
		}
		cur = cur[:0]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		cur = append(cur, line)
	}
	emit()
	return out
}

// extractImages returns image targets in order of appearance.
func extractImages(text string) []string {
	matches := imagePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// SmartSplit bounds text to maxLen characters. Text within the bound is
// returned as is; longer text is split into sentences, greedily packed with
// single spaces, and any part still too long is hard-cut into maxLen slices.
func SmartSplit(text string, maxLen int) []string {
	if runeLen(text) <= maxLen {
		return []string{text}
	}

	var packed []string
	cur := ""
	for _, s := range sentences(text) {
		switch {
		case cur == "":
			cur = s
		case runeLen(cur)+1+runeLen(s) <= maxLen:
			cur += " " + s
		default:
			packed = append(packed, cur)
			cur = s
		}
	}
	if cur != "" {
		packed = append(packed, cur)
	}

	var out []string
	for _, p := range packed {
		out = append(out, hardCut(p, maxLen)...)
	}
	return out
}

// sentences splits on runs of whitespace that follow '.', '!' or '?'.
func sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 || !isTerminal(runes[i-1]) {
			continue
		}
		if i > start {
			out = append(out, string(runes[start:i]))
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// hardCut slices text into consecutive pieces of at most n characters.
func hardCut(text string, n int) []string {
	runes := []rune(text)
	if len(runes) <= n {
		return []string{text}
	}
	out := make([]string, 0, len(runes)/n+1)
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func joinPath(path []string) string {
	return strings.Join(path, SectionSeparator)
}
