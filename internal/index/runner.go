// Package index turns cleaned "-RAG.md" papers into stored, embedded chunks.
//
// Each document goes through parse, identity resolution, an existence
// check, chunking, embedding and storage. Documents are processed one at a
// time; a failure in one document is reported and the run moves on.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/paperrag/internal/annotate"
	"github.com/Aman-CERP/paperrag/internal/chunk"
	"github.com/Aman-CERP/paperrag/internal/cleanup"
	"github.com/Aman-CERP/paperrag/internal/embed"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/frontmatter"
	"github.com/Aman-CERP/paperrag/internal/registry"
	"github.com/Aman-CERP/paperrag/internal/store"
	"github.com/Aman-CERP/paperrag/internal/ui"
)

// PreviewLen is the number of characters shown per previewed chunk.
const PreviewLen = 200

// Options configures an indexing run.
type Options struct {
	// Files lists documents to index. Empty means discover under PapersDir.
	Files []string

	// PapersDir is searched for papers/*/md_with_images/*-RAG.md.
	PapersDir string

	// Force re-chunks and re-embeds papers that are already stored.
	// The paper row is reused, never duplicated.
	Force bool

	// DryRun parses and chunks without embedding or storing.
	DryRun bool

	// Show is the number of chunk previews collected per document.
	Show int

	// PrependSection prefixes each chunk's section path to the embedded text.
	PrependSection bool

	// Collection is used for papers whose registry entry has no topic.
	// Empty means store.DefaultCollection.
	Collection string

	// BatchSize is the number of texts per embedding call.
	BatchSize int
}

// Status is the outcome of one document.
type Status string

const (
	StatusIndexed   Status = "indexed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusPreviewed Status = "previewed"
)

// Preview is a shortened view of one chunk.
type Preview struct {
	ChunkIndex int
	Section    string
	ImageRefs  []string
	Text       string
}

// Outcome reports what happened to one document.
type Outcome struct {
	Path       string
	Status     Status
	Identity   Identity
	PaperID    string
	Collection string
	Chunks     int
	Previews   []Preview
	Reason     string // Why a document was skipped
	Err        error
}

// Summary aggregates a run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Chunks    int
	Outcomes  []Outcome
	Duration  time.Duration
}

// RunnerDependencies holds the collaborators of a Runner.
type RunnerDependencies struct {
	// Sink receives papers and chunks. Not needed for dry runs.
	Sink store.Sink

	// Embedder vectorizes chunk text. Not needed for dry runs.
	Embedder embed.Embedder

	// Chunker splits document bodies (required).
	Chunker chunk.Chunker

	// Registry maps citation keys to topics, which name collections.
	Registry []registry.Record

	// Renderer displays progress. Optional.
	Renderer ui.Renderer
}

// Runner executes indexing runs.
type Runner struct {
	sink     store.Sink
	embedder embed.Embedder
	chunker  chunk.Chunker
	topics   []registry.Record
	renderer ui.Renderer
}

// NewRunner creates a Runner with the given dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	return &Runner{
		sink:     deps.Sink,
		embedder: deps.Embedder,
		chunker:  deps.Chunker,
		topics:   deps.Registry,
		renderer: deps.Renderer,
	}, nil
}

// Run indexes every file in opts. Per-document failures are recorded in
// the summary; the returned error is reserved for problems that stop the
// whole run (discovery, missing collaborators, cancellation).
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	if !opts.DryRun {
		if r.sink == nil {
			return nil, fmt.Errorf("storage sink is required")
		}
		if r.embedder == nil {
			return nil, fmt.Errorf("embedder is required")
		}
	}

	files := opts.Files
	if len(files) == 0 {
		r.progress(ui.ProgressEvent{Stage: ui.StageDiscovering, Message: "Discovering " + opts.PapersDir})
		found, err := cleanup.DiscoverRAG(opts.PapersDir)
		if err != nil {
			return nil, err
		}
		files = found
	}

	slog.Info("index_started",
		slog.Int("files", len(files)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("force", opts.Force))

	sum := &Summary{Outcomes: make([]Outcome, 0, len(files))}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r.progress(ui.ProgressEvent{Stage: ui.StageChunking, Current: i + 1, Total: len(files), CurrentFile: path})

		o := r.IndexFile(ctx, path, opts)
		sum.Outcomes = append(sum.Outcomes, o)
		switch o.Status {
		case StatusIndexed, StatusPreviewed:
			sum.Processed++
			sum.Chunks += o.Chunks
		case StatusSkipped:
			sum.Skipped++
		case StatusFailed:
			sum.Failed++
			if errors.Is(o.Err, context.Canceled) {
				return sum, o.Err
			}
		}
	}
	sum.Duration = time.Since(start)

	r.complete(sum, opts)
	slog.Info("index_complete",
		slog.Int("processed", sum.Processed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("chunks", sum.Chunks),
		slog.Int64("duration_ms", sum.Duration.Milliseconds()))
	return sum, nil
}

// IndexFile runs one document through the pipeline. It never panics on bad
// input and always returns an Outcome; failures carry Err.
func (r *Runner) IndexFile(ctx context.Context, path string, opts Options) Outcome {
	o := Outcome{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return r.fail(o, perrors.New(perrors.ErrCodeFileNotFound, "failed to read document", err).
			WithDetail("path", path))
	}

	meta, body := frontmatter.Parse(string(data))
	o.Identity = ResolveIdentity(meta, body, path)
	o.Collection = r.collectionFor(path, o.Identity, opts)

	if opts.DryRun {
		records := chunk.BuildRecords(r.identity(o.Identity), r.chunker.Split(body))
		o.Status = StatusPreviewed
		o.Chunks = len(records)
		o.Previews = previews(records, opts.Show)
		return o
	}

	existing, err := r.sink.FindPaper(ctx, o.Identity.DOI, o.Identity.CitationKey)
	if err != nil {
		return r.fail(o, err)
	}
	if existing != nil && !opts.Force {
		o.Status = StatusSkipped
		o.PaperID = existing.ID
		o.Reason = "already indexed"
		slog.Info("index_skip_existing",
			slog.String("path", path),
			slog.String("doi", o.Identity.DOI),
			slog.String("citation_key", o.Identity.CitationKey))
		return o
	}

	records := chunk.BuildRecords(r.identity(o.Identity), r.chunker.Split(body))
	o.Previews = previews(records, opts.Show)
	if len(records) == 0 {
		o.Status = StatusSkipped
		o.Reason = "no chunks"
		slog.Warn("index_no_chunks", slog.String("path", path))
		return o
	}

	r.progress(ui.ProgressEvent{Stage: ui.StageEmbedding, CurrentFile: path,
		Message: fmt.Sprintf("Embedding %d chunks", len(records))})
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = chunk.EmbedText(rec, opts.PrependSection)
	}
	vectors, err := EmbedAll(ctx, r.embedder, texts, opts.BatchSize)
	if err != nil {
		return r.fail(o, err)
	}

	paperID := o.Identity.DOI
	if existing != nil {
		paperID = existing.ID
	}

	r.progress(ui.ProgressEvent{Stage: ui.StageStoring, CurrentFile: path})
	if err := r.sink.StoreChunks(ctx, paperID, toStoreChunks(records, vectors, o.Collection)); err != nil {
		return r.fail(o, err)
	}

	paper := o.Identity.Paper(o.Collection)
	paper.ID = paperID
	if paperID, err = r.sink.UpsertPaper(ctx, paper); err != nil {
		return r.fail(o, err)
	}

	o.Status = StatusIndexed
	o.PaperID = paperID
	o.Chunks = len(records)
	slog.Info("index_paper_stored",
		slog.String("path", path),
		slog.String("paper_id", paperID),
		slog.String("collection", o.Collection),
		slog.Int("chunks", len(records)))
	return o
}

func (r *Runner) fail(o Outcome, err error) Outcome {
	o.Status = StatusFailed
	o.Err = err
	slog.Warn("index_paper_failed",
		append([]any{slog.String("path", o.Path), slog.String("doi", o.Identity.DOI)}, perrors.LogAttrs(err)...)...)
	if r.renderer != nil {
		r.renderer.AddError(ui.ErrorEvent{File: o.Path, Err: err})
	}
	return o
}

// collectionFor picks the registry topic of the paper, keyed by its
// papers/<key>/ directory and then by citation key, falling back to the
// configured default.
func (r *Runner) collectionFor(path string, id Identity, opts Options) string {
	for _, key := range []string{annotate.KeyFromPath(path), id.CitationKey} {
		if i := registry.FindByKey(r.topics, key); i >= 0 {
			if topic := strings.TrimSpace(r.topics[i].Topic); topic != "" {
				return topic
			}
		}
	}
	if opts.Collection != "" {
		return opts.Collection
	}
	return store.DefaultCollection
}

func (r *Runner) identity(id Identity) chunk.Identity {
	return chunk.Identity{DOI: id.DOI, CitationKey: id.CitationKey, SourcePath: id.SourcePath}
}

func (r *Runner) progress(event ui.ProgressEvent) {
	if r.renderer != nil {
		r.renderer.UpdateProgress(event)
	}
}

func (r *Runner) complete(sum *Summary, opts Options) {
	if r.renderer == nil {
		return
	}
	stats := ui.CompletionStats{
		Processed: sum.Processed,
		Skipped:   sum.Skipped,
		Failed:    sum.Failed,
		Chunks:    sum.Chunks,
		Duration:  sum.Duration,
		DryRun:    opts.DryRun,
	}
	if r.embedder != nil {
		stats.Embedder = ui.EmbedderInfo{Model: r.embedder.ModelName(), Dimensions: r.embedder.Dimensions()}
	}
	r.renderer.Complete(stats)
}

func toStoreChunks(records []chunk.Record, vectors [][]float32, collection string) []*store.Chunk {
	chunks := make([]*store.Chunk, len(records))
	for i, rec := range records {
		chunks[i] = &store.Chunk{
			Collection:  collection,
			DOI:         rec.DOI,
			CitationKey: rec.CitationKey,
			Section:     rec.Section,
			ChunkIndex:  rec.ChunkIndex,
			Hash:        rec.Hash,
			ImageRefs:   rec.ImageRefs,
			Text:        rec.Text,
			SourcePath:  rec.SourcePath,
			Vector:      vectors[i],
		}
	}
	return chunks
}

func previews(records []chunk.Record, n int) []Preview {
	n = min(n, len(records))
	if n <= 0 {
		return nil
	}
	out := make([]Preview, n)
	for i, rec := range records[:n] {
		out[i] = Preview{
			ChunkIndex: rec.ChunkIndex,
			Section:    rec.Section,
			ImageRefs:  rec.ImageRefs,
			Text:       PreviewText(rec.Text),
		}
	}
	return out
}

// PreviewText flattens newlines and cuts text to PreviewLen characters,
// appending "..." when it was longer.
func PreviewText(text string) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(flat)
	if len(runes) <= PreviewLen {
		return flat
	}
	return string(runes[:PreviewLen]) + "..."
}
