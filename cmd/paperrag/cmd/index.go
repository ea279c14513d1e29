package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/chunk"
	"github.com/Aman-CERP/paperrag/internal/index"
	"github.com/Aman-CERP/paperrag/internal/ui"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	files            []string
	dryRun           bool
	show             int
	force            bool
	noPrependSection bool
	embedModel       string
	collection       string
	plain            bool
	noColor          bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk, embed and store cleaned papers",
		Long: `Index papers/*/md_with_images/*-RAG.md into the local store.

Each document is identified by its DOI (or a synthetic doc: id derived
from its content), split into section-aware chunks, embedded and stored
in the collection named by its registry topic. Papers already stored
are skipped unless --force-reindex-chunks is given.

Examples:
  paperrag index
  paperrag index --dry-run --show 3
  paperrag index --file output/papers/smith2024heart/md_with_images/paper-RAG.md
  paperrag index --force-reindex-chunks --db-name cardiology`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.files, "file", nil, "Index only this -RAG.md file (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse and chunk without embedding or storing")
	cmd.Flags().IntVar(&opts.show, "show", 3, "Number of chunk previews to print per document")
	cmd.Flags().BoolVar(&opts.force, "force-reindex-chunks", false, "Re-chunk papers that are already stored (the paper row is reused)")
	cmd.Flags().BoolVar(&opts.noPrependSection, "no-prepend-section", false, "Do not prefix the section path to embedded text")
	cmd.Flags().StringVar(&opts.embedModel, "embed-model", "", "Embedding model (default from config)")
	cmd.Flags().StringVar(&opts.collection, "db-name", "", "Collection for papers without a registry topic (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output instead of the TUI")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	records, err := p.loadRegistry()
	if err != nil {
		return err
	}

	deps := index.RunnerDependencies{
		Chunker:  chunk.NewSectionChunker(chunk.Options{MaxLen: p.cfg.Chunking.MaxLen}),
		Registry: records,
	}

	if !opts.dryRun {
		emb, err := p.newEmbedder(ctx, opts.embedModel)
		if err != nil {
			return err
		}
		defer func() { _ = emb.Close() }()

		s, err := p.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		deps.Embedder = emb
		deps.Sink = s
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewRenderer(ui.NewConfig(out,
		ui.WithForcePlain(opts.plain || opts.dryRun),
		ui.WithNoColor(opts.noColor),
		ui.WithTitle("paperrag index")))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	deps.Renderer = renderer

	runner, err := index.NewRunner(deps)
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	collection := opts.collection
	if collection == "" {
		collection = p.cfg.Storage.DefaultCollection
	}
	summary, err := runner.Run(ctx, index.Options{
		Files:          opts.files,
		PapersDir:      p.papersDir(),
		Force:          opts.force,
		DryRun:         opts.dryRun,
		Show:           opts.show,
		PrependSection: p.cfg.Chunking.PrependSection && !opts.noPrependSection,
		Collection:     collection,
		BatchSize:      p.cfg.Embeddings.BatchSize,
	})
	_ = renderer.Stop()
	if summary != nil {
		printIndexOutcomes(out, summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed to index", summary.Failed)
	}
	return nil
}

// printIndexOutcomes lists skipped and failed documents and the chunk
// previews collected for --show.
func printIndexOutcomes(w io.Writer, sum *index.Summary) {
	for _, o := range sum.Outcomes {
		switch o.Status {
		case index.StatusSkipped:
			_, _ = fmt.Fprintf(w, "SKIP  %s: %s\n", o.Path, o.Reason)
		case index.StatusFailed:
			_, _ = fmt.Fprintf(w, "FAIL  %s: %v\n", o.Path, o.Err)
		}
		if len(o.Previews) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n== %s (%s, doi=%s, collection=%s, %d chunks)\n",
			o.Identity.CitationKey, o.Path, o.Identity.DOI, o.Collection, o.Chunks)
		for _, pv := range o.Previews {
			_, _ = fmt.Fprintf(w, "[%d] Section: %s\n", pv.ChunkIndex, pv.Section)
			if len(pv.ImageRefs) > 0 {
				_, _ = fmt.Fprintf(w, "    Images: %s\n", strings.Join(pv.ImageRefs, ", "))
			}
			_, _ = fmt.Fprintf(w, "    %s\n", pv.Text)
		}
	}
}

