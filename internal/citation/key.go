package citation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	nonAlnum      = regexp.MustCompile(`[^A-Za-z0-9]`)
	nonLowerAlnum = regexp.MustCompile(`[^a-z0-9]`)
	wordPattern   = regexp.MustCompile(`[A-Za-z0-9]+`)
	stopwords     = map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "and": true,
		"in": true, "on": true, "for": true, "to": true, "with": true,
	}
)

const shortTitleLen = 24

// BuildKey derives an authorYearTitle citation key, e.g. smith2020outcomesx.
// Missing parts become "anon", "0000" and "art"; fallbackTitle is used when
// csl carries no title.
func BuildKey(csl *CSL, fallbackTitle string) string {
	family := firstAuthorFamily(csl)

	year := "0000"
	if y := csl.Year(); y > 0 {
		year = strconv.Itoa(y)
	}

	title := ""
	if csl != nil {
		title = csl.Title.String()
	}
	if title == "" {
		title = fallbackTitle
	}
	if title == "" {
		title = "Untitled"
	}

	key := nonLowerAlnum.ReplaceAllString(strings.ToLower(family+year+shortTitle(title)), "")
	if key == "" {
		return slug(title, 30)
	}
	return key
}

func firstAuthorFamily(csl *CSL) string {
	if csl == nil {
		return "anon"
	}
	if len(csl.Author) > 0 {
		if fam := strings.TrimSpace(csl.Author[0].Family); fam != "" {
			if s := nonAlnum.ReplaceAllString(strings.ToLower(fam), ""); s != "" {
				return s
			}
			return "anon"
		}
	}
	for _, v := range []string{csl.Publisher, csl.ContainerTitle.String(), csl.InstitutionName()} {
		fields := strings.Fields(v)
		if len(fields) == 0 {
			continue
		}
		if s := nonAlnum.ReplaceAllString(strings.ToLower(fields[0]), ""); s != "" {
			return s
		}
		return "anon"
	}
	return "anon"
}

func shortTitle(title string) string {
	var sb strings.Builder
	for _, w := range wordPattern.FindAllString(strings.ToLower(title), -1) {
		if !stopwords[w] {
			sb.WriteString(w)
		}
	}
	s := sb.String()
	if s == "" {
		return "art"
	}
	if len(s) > shortTitleLen {
		s = s[:shortTitleLen]
	}
	return s
}

// slug keeps lowercase ASCII letters and digits, capped at maxLen.
func slug(s string, maxLen int) string {
	out := nonLowerAlnum.ReplaceAllString(strings.ToLower(s), "")
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	if out == "" {
		return "key"
	}
	return out
}

// SafeFilename sanitizes a citation key for use as a file stem: lowercase
// letters and digits only, at most 80 characters, "key" when empty.
func SafeFilename(key string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if s == "" {
		return "key"
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80])
	}
	return s
}
