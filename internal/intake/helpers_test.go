package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Aman-CERP/paperrag/internal/citation"
)

// fakeLookup serves CSL from a map and counts calls.
type fakeLookup struct {
	mu    sync.Mutex
	csl   map[string]*citation.CSL
	err   error
	calls []string
}

func (f *fakeLookup) Lookup(_ context.Context, doi string) (*citation.CSL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, doi)
	if f.err != nil {
		return nil, f.err
	}
	return f.csl[doi], nil
}

// textExtractor treats file content as "field: value" lines instead of
// parsing a real PDF. A "fail" line makes extraction fail.
func textExtractor(data []byte, _ int) (*PDFInfo, error) {
	info := &PDFInfo{Pages: 1}
	var text []string
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case line == "fail":
			return nil, errors.New("cannot parse")
		case strings.HasPrefix(line, "meta: "):
			info.MetaTitle = strings.TrimPrefix(line, "meta: ")
		case strings.HasPrefix(line, "big: "):
			info.LargestFontTitle = strings.TrimPrefix(line, "big: ")
		default:
			text = append(text, line)
		}
	}
	info.Text = strings.Join(text, "\n")
	return info, nil
}

// buildPDF writes a one-page PDF with a title in the Info dictionary and
// the given content stream.
func buildPDF(title, content string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Title (%s) >>", title),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
