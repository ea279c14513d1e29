package intake

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// DefaultScanPages is how many leading pages are searched for a DOI.
const DefaultScanPages = 2

// PDFInfo is what the checker needs from a PDF.
type PDFInfo struct {
	Text             string // plain text of the first pages
	MetaTitle        string // Info dictionary title
	LargestFontTitle string // largest-font span on page 1
	Pages            int
}

// ExtractPDF reads plain text from the first pages of data plus the
// title candidates. The pdf reader panics on some malformed input, which
// is reported as ErrCodePDFUnreadable.
func ExtractPDF(data []byte, pages int) (info *PDFInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = perrors.New(perrors.ErrCodePDFUnreadable, fmt.Sprintf("malformed PDF: %v", r), nil)
		}
	}()

	if pages <= 0 {
		pages = DefaultScanPages
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodePDFUnreadable, "failed to open PDF", err)
	}

	info = &PDFInfo{Pages: r.NumPage()}
	info.MetaTitle = strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())

	var parts []string
	for i := 1; i <= info.Pages && i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, text)
	}
	info.Text = strings.Join(parts, "\n")

	if info.Pages > 0 {
		if page := r.Page(1); !page.V.IsNull() {
			info.LargestFontTitle = largestFontTitle(page.Content().Text)
		}
	}
	return info, nil
}

var notTitleMarkers = []string{"doi:", "www.", "http://", "https://", "copyright"}

// largestFontTitle groups glyphs into runs sharing a baseline and font
// size, then returns the run with the largest size. Runs shorter than 5
// characters or that look like links and notices are ignored. The first
// run wins ties.
func largestFontTitle(glyphs []pdf.Text) string {
	type run struct {
		size float64
		y    float64
		text strings.Builder
	}

	var runs []*run
	var cur *run
	for _, g := range glyphs {
		if cur == nil || !sameFloat(cur.size, g.FontSize) || !sameFloat(cur.y, g.Y) {
			cur = &run{size: g.FontSize, y: g.Y}
			runs = append(runs, cur)
		}
		cur.text.WriteString(g.S)
	}

	bestSize, best := 0.0, ""
	for _, r := range runs {
		text := strings.Join(strings.Fields(r.text.String()), " ")
		if len([]rune(text)) < 5 {
			continue
		}
		lower := strings.ToLower(text)
		skip := false
		for _, m := range notTitleMarkers {
			if strings.Contains(lower, m) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if r.size > bestSize {
			bestSize, best = r.size, text
		}
	}
	return best
}

func sameFloat(a, b float64) bool {
	return math.Abs(a-b) < 0.5
}
