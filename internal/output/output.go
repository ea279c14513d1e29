// Package output prints per-file outcomes of pipeline steps and keeps a
// tally for the closing summary line.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Outcome labels, padded to a common width.
const (
	labelOK   = "OK  "
	labelSkip = "SKIP"
	labelFail = "FAIL"
)

// Writer prints one line per processed file. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	ok      int
	skipped int
	failed  int
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// OK records a processed file. detail is optional.
func (w *Writer) OK(path, detail string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ok++
	w.line(labelOK, path, detail)
}

// Skip records a file left alone and why.
func (w *Writer) Skip(path, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipped++
	w.line(labelSkip, path, reason)
}

// Fail records a file that could not be processed.
func (w *Writer) Fail(path string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed++
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	w.line(labelFail, path, msg)
}

func (w *Writer) line(label, path, detail string) {
	if detail == "" {
		_, _ = fmt.Fprintf(w.out, "%s  %s\n", label, path)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s  %s: %s\n", label, path, detail)
}

// Counts returns the tally so far.
func (w *Writer) Counts() (ok, skipped, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ok, w.skipped, w.failed
}

// Summary prints "<verb> N file(s), N skipped, N failed".
func (w *Writer) Summary(verb string) {
	ok, skipped, failed := w.Counts()
	_, _ = fmt.Fprintf(w.out, "%s %d file(s), %d skipped, %d failed\n", verb, ok, skipped, failed)
}

// Err returns an error naming the step when any file failed.
func (w *Writer) Err(step string) error {
	_, _, failed := w.Counts()
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d file(s) failed", step, failed)
}

// Statusf prints a free-form line.
func (w *Writer) Statusf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Code prints a block indented by two spaces between blank lines.
func (w *Writer) Code(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}
