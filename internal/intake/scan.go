package intake

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/paperrag/internal/citation"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/registry"
)

// MarkdownDir is the per-paper folder holding converted Markdown.
const MarkdownDir = "md_with_images"

// Options locates the input tree.
type Options struct {
	InputDir     string // stray PDFs here are moved into PDFDir
	PDFDir       string
	TopicsDir    string // PDFs in TopicsDir/<topic>/ get that topic
	CitationsDir string // CSL-JSON is saved here when non-empty
	Workers      int    // concurrent extractions, default NumCPU
}

// Outcome reports what happened to one PDF.
type Outcome struct {
	Path        string // final path after renaming
	Original    string
	Topic       string
	CitationKey string
	DOI         string
	Action      registry.Action
	Changed     bool
	Skipped     bool // stem already a registered key
	Err         error
}

// Summary aggregates a scan.
type Summary struct {
	Found    int
	Skipped  int
	Added    int
	Merged   int
	Failed   int
	Outcomes []Outcome
	Duration time.Duration
}

// Scanner runs intake over an input tree.
type Scanner struct {
	opts     Options
	checker  *Checker
	store    *registry.Store
	progress func(Outcome)
}

// NewScanner creates a scanner. progress may be nil.
func NewScanner(opts Options, checker *Checker, store *registry.Store, progress func(Outcome)) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if progress == nil {
		progress = func(Outcome) {}
	}
	return &Scanner{opts: opts, checker: checker, store: store, progress: progress}
}

type pending struct {
	path  string
	topic string
}

// Run moves stray PDFs, checks every PDF not yet registered, renames files
// to their citation keys and reconciles all results in one registry update.
// A failure on one PDF is recorded in its Outcome and does not stop the scan.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	for _, dir := range []string{s.opts.PDFDir, s.opts.TopicsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, perrors.New(perrors.ErrCodeFilePermission, "failed to create input dir", err).
				WithDetail("path", dir)
		}
	}
	s.moveStrays()

	files, err := s.collect()
	if err != nil {
		return nil, err
	}
	sum := &Summary{Found: len(files)}
	if len(files) == 0 {
		sum.Duration = time.Since(start)
		return sum, nil
	}

	known, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))
	results := make([]*Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range files {
		outcomes[i] = Outcome{Path: f.path, Original: f.path, Topic: f.topic}
		if k := registry.FindByKey(known, stem(f.path)); k >= 0 {
			outcomes[i].Skipped = true
			outcomes[i].CitationKey = known[k].CitationKey
			continue
		}
		g.Go(func() error {
			res, err := s.checker.Check(gctx, f.path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				outcomes[i].Err = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var candidates []int
	for i := range files {
		res := results[i]
		if res == nil {
			continue
		}
		outcomes[i].CitationKey = res.CitationKey
		outcomes[i].DOI = res.DOI
		outcomes[i].Path = s.rename(files[i].path, res.CitationKey)
		if res.CSL != nil && s.opts.CitationsDir != "" && citation.IsRealDOI(res.DOI) {
			if _, err := citation.SaveCSL(s.opts.CitationsDir, res.DOI, res.CSL); err != nil {
				slog.Warn("csl_save_failed", append([]any{slog.String("doi", res.DOI)}, perrors.LogAttrs(err)...)...)
			}
		}
		candidates = append(candidates, i)
	}

	err = s.store.Update(ctx, func(records []registry.Record) ([]registry.Record, bool, error) {
		dirty := false
		for _, i := range candidates {
			res := results[i]
			var action registry.Action
			var changed bool
			records, action, changed = registry.Reconcile(records, registry.Record{
				CitationKey: res.CitationKey,
				Title:       res.Title,
				DOI:         res.DOI,
				CSL:         res.CSL,
				Topic:       files[i].topic,
			})
			outcomes[i].Action = action
			outcomes[i].Changed = changed
			dirty = dirty || changed
		}
		return records, dirty, nil
	})
	if err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		switch {
		case o.Skipped:
			sum.Skipped++
		case o.Err != nil:
			sum.Failed++
			slog.Warn("intake_pdf_failed", append([]any{slog.String("path", o.Original)}, perrors.LogAttrs(o.Err)...)...)
		case o.Action == registry.ActionNew:
			sum.Added++
		case o.Changed:
			sum.Merged++
		}
		s.progress(o)
	}
	sum.Outcomes = outcomes
	sum.Duration = time.Since(start)

	slog.Info("intake_complete",
		slog.Int("found", sum.Found),
		slog.Int("skipped", sum.Skipped),
		slog.Int("added", sum.Added),
		slog.Int("merged", sum.Merged),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", sum.Duration))
	return sum, nil
}

// moveStrays moves PDFs sitting directly in InputDir into PDFDir unless a
// file of the same name is already there.
func (s *Scanner) moveStrays() {
	if s.opts.InputDir == "" {
		return
	}
	matches, _ := filepath.Glob(filepath.Join(s.opts.InputDir, "*.pdf"))
	for _, p := range matches {
		target := filepath.Join(s.opts.PDFDir, filepath.Base(p))
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := os.Rename(p, target); err != nil {
			slog.Warn("stray_pdf_move_failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		slog.Info("stray_pdf_moved", slog.String("from", p), slog.String("to", target))
	}
}

// collect lists PDFDir PDFs, then topic PDFs, each sorted.
func (s *Scanner) collect() ([]pending, error) {
	var out []pending
	matches, err := filepath.Glob(filepath.Join(s.opts.PDFDir, "*.pdf"))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeInvalidPath, "bad PDF dir", err)
	}
	sort.Strings(matches)
	for _, m := range matches {
		out = append(out, pending{path: m})
	}

	entries, err := os.ReadDir(s.opts.TopicsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, perrors.New(perrors.ErrCodeFilePermission, "failed to list topics", err).
			WithDetail("path", s.opts.TopicsDir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		topicPDFs, _ := filepath.Glob(filepath.Join(s.opts.TopicsDir, e.Name(), "*.pdf"))
		sort.Strings(topicPDFs)
		for _, m := range topicPDFs {
			out = append(out, pending{path: m, topic: e.Name()})
		}
	}
	return out, nil
}

// rename moves path to <safe key>.pdf in the same directory and returns
// the final path. The original path is kept when renaming fails.
func (s *Scanner) rename(path, key string) string {
	name := citation.SafeFilename(key)
	if key == "" {
		name = citation.SafeFilename(stem(path))
	}
	if strings.EqualFold(stem(path), name) {
		return path
	}
	target := registry.UniquePath(filepath.Dir(path), name, filepath.Ext(path))
	if err := os.Rename(path, target); err != nil {
		slog.Warn("pdf_rename_failed", slog.String("path", path), slog.String("error", err.Error()))
		return path
	}
	slog.Info("pdf_renamed", slog.String("from", filepath.Base(path)), slog.String("to", filepath.Base(target)))
	return target
}

// PrepareOutputDirs creates papers/<citation_key>/md_with_images for each
// registry record and returns the paper directories it created.
func PrepareOutputDirs(records []registry.Record, papersDir string) ([]string, error) {
	if err := os.MkdirAll(papersDir, 0o755); err != nil {
		return nil, perrors.New(perrors.ErrCodeFilePermission, "failed to create papers dir", err).
			WithDetail("path", papersDir)
	}
	var created []string
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.CitationKey))
		if key == "" {
			continue
		}
		dir := filepath.Join(papersDir, key)
		_, statErr := os.Stat(dir)
		if err := os.MkdirAll(filepath.Join(dir, MarkdownDir), 0o755); err != nil {
			return created, perrors.New(perrors.ErrCodeFilePermission, "failed to create paper dir", err).
				WithDetail("path", dir)
		}
		if os.IsNotExist(statErr) {
			created = append(created, dir)
		}
	}
	return created, nil
}
