// Package frontmatter parses and renders the restricted YAML-like header
// block that precedes document bodies.
//
// Only two value shapes are understood: scalar strings and ordered lists of
// strings. Anything the parser cannot close cleanly is treated as body.
package frontmatter

import (
	"regexp"
	"sort"
	"strings"
)

var (
	boundaryPattern = regexp.MustCompile(`^---\s*$`)
	keyValPattern   = regexp.MustCompile(`^([A-Za-z0-9_\-]+):\s*(.*)$`)
	listItemPattern = regexp.MustCompile(`^\s*-\s*(.*)$`)
)

// Value is a front matter value: either a scalar or a list.
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

// Meta maps front matter keys to values.
type Meta map[string]Value

// Get returns the scalar value for key, or "" for lists and missing keys.
func (m Meta) Get(key string) string {
	v, ok := m[key]
	if !ok || v.IsList {
		return ""
	}
	return v.Scalar
}

// First returns the first non-empty scalar among keys.
func (m Meta) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// List returns the list value for key, or nil.
func (m Meta) List(key string) []string {
	v, ok := m[key]
	if !ok || !v.IsList {
		return nil
	}
	return v.List
}

// Parse splits text into front matter and body.
//
// Text that does not start with a boundary line, or whose header is never
// closed, is returned unchanged as body with empty metadata.
func Parse(text string) (Meta, string) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !boundaryPattern.MatchString(lines[0]) {
		return Meta{}, text
	}

	meta := Meta{}
	var listKey string
	var list []string
	listOpen := false

	commit := func() {
		if listOpen {
			meta[listKey] = Value{List: list, IsList: true}
		}
		listOpen = false
		listKey = ""
		list = nil
	}

	for i := 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")

		if boundaryPattern.MatchString(line) {
			commit()
			return meta, strings.Join(lines[i+1:], "\n")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := keyValPattern.FindStringSubmatch(line); m != nil {
			commit()
			key, raw := m[1], strings.TrimSpace(m[2])
			if opensList(raw) {
				listKey = key
				listOpen = true
				continue
			}
			meta[key] = Value{Scalar: unquote(raw)}
			continue
		}

		if listOpen {
			if m := listItemPattern.FindStringSubmatch(line); m != nil {
				list = append(list, unquote(strings.TrimSpace(m[1])))
			}
		}
	}

	// no closing boundary
	return Meta{}, text
}

// Split returns only the body of text, dropping any well-formed front matter.
func Split(text string) string {
	_, body := Parse(text)
	return body
}

// SplitRaw separates a boundary-delimited header, markers included and
// newline-terminated, from the body. Without a closed header it returns
// ("", text).
func SplitRaw(text string) (header, body string) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !boundaryPattern.MatchString(lines[0]) {
		return "", text
	}
	for i := 1; i < len(lines); i++ {
		if boundaryPattern.MatchString(strings.TrimRight(lines[i], "\r")) {
			return strings.Join(lines[:i+1], "\n") + "\n", strings.Join(lines[i+1:], "\n")
		}
	}
	return "", text
}

// opensList reports whether a raw value starts a list accumulator.
func opensList(raw string) bool {
	return raw == "" || raw == "|" || raw == ">"
}

// unquote strips one layer of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Render writes meta as a header block followed by body. Keys are emitted
// in order, then any remaining keys alphabetically. Values are double
// quoted with backslash and quote escaped.
func Render(meta Meta, order []string, body string) string {
	var sb strings.Builder
	sb.WriteString("---\n")

	seen := make(map[string]bool, len(meta))
	write := func(key string) {
		v, ok := meta[key]
		if !ok || seen[key] {
			return
		}
		seen[key] = true
		if v.IsList {
			sb.WriteString(key + ":\n")
			for _, item := range v.List {
				sb.WriteString("  - " + Quote(item) + "\n")
			}
			return
		}
		sb.WriteString(key + ": " + Quote(v.Scalar) + "\n")
	}

	for _, k := range order {
		write(k)
	}
	rest := make([]string, 0, len(meta))
	for k := range meta {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		write(k)
	}

	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimLeft(body, "\n"))
	return sb.String()
}

// Quote renders s as a double-quoted scalar.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
