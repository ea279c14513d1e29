package citation

import (
	"strconv"
	"strings"
)

var bibtexTypes = map[string]string{
	"journal-article":     "article",
	"proceedings-article": "inproceedings",
	"paper-conference":    "inproceedings",
	"book":                "book",
	"book-chapter":        "incollection",
	"chapter":             "incollection",
	"report":              "techreport",
	"thesis":              "phdthesis",
	"dissertation":        "phdthesis",
	"dataset":             "misc",
	"posted-content":      "misc",
}

var bibtexFieldOrder = []string{
	"author", "title", "journal", "booktitle", "publisher", "year", "month",
	"volume", "number", "pages", "doi", "url", "howpublished",
}

// BibTeXType maps a CSL type to a BibTeX entry type.
func BibTeXType(cslType string) string {
	if t, ok := bibtexTypes[strings.ToLower(cslType)]; ok {
		return t
	}
	return "misc"
}

// BibTeXKey returns doi_<safe doi> when the record has a DOI, otherwise a
// title slug followed by the year.
func BibTeXKey(c *CSL) string {
	if c.DOI != "" {
		return "doi_" + SafeDOI(c.DOI)
	}
	title := c.Title.String()
	if title == "" {
		title = "untitled"
	}
	key := nonAlnum.ReplaceAllString(strings.ToLower(title), "")
	if len(key) > 30 {
		key = key[:30]
	}
	if y := c.Issued.Parts(); len(y) > 0 && y[0] > 0 {
		return key + strconv.Itoa(int(y[0]))
	}
	if key == "" {
		return "key"
	}
	return key
}

// BibTeX renders c as a BibTeX entry.
func BibTeX(c *CSL) string {
	entryType := BibTeXType(c.Type)
	fields := map[string]string{
		"title":  c.Title.String(),
		"author": bibtexAuthors(c.Author),
	}

	if parts := c.Issued.Parts(); len(parts) > 0 && parts[0] > 0 {
		fields["year"] = strconv.Itoa(int(parts[0]))
		if len(parts) > 1 && parts[1] > 0 {
			fields["month"] = strconv.Itoa(int(parts[1]))
		}
	}

	container := c.ContainerTitle.String()
	switch {
	case entryType == "article":
		fields["journal"] = container
	case entryType == "inproceedings" || entryType == "incollection":
		fields["booktitle"] = container
	default:
		fields["howpublished"] = container
	}

	fields["volume"] = c.Volume.String()
	fields["number"] = c.Issue.String()
	fields["pages"] = c.Page.String()
	fields["publisher"] = c.Publisher
	fields["doi"] = c.DOI
	fields["url"] = c.URL

	lines := []string{"@" + entryType + "{" + BibTeXKey(c) + ","}
	for _, k := range bibtexFieldOrder {
		if v := fields[k]; v != "" {
			lines = append(lines, "  "+k+" = {"+bibtexEscape(v)+"},")
		}
	}
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

func bibtexAuthors(authors []Agent) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.Family != "" && a.Given != "":
			names = append(names, a.Family+", "+a.Given)
		case a.Family != "":
			names = append(names, a.Family)
		case a.Given != "":
			names = append(names, a.Given)
		}
	}
	return strings.Join(names, " and ")
}

func bibtexEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "{", `\{`)
	return strings.ReplaceAll(s, "}", `\}`)
}
