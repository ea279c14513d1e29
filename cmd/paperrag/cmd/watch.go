package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/paperrag/internal/chunk"
	"github.com/Aman-CERP/paperrag/internal/index"
	"github.com/Aman-CERP/paperrag/internal/watcher"
)

type watchOptions struct {
	initial  bool
	debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index new or changed -RAG.md files as they appear",
		Long: `Watch the papers directory and index -RAG.md files when they are
created, and re-index them when they change. Deleted files are logged;
their stored chunks are kept until the paper is re-indexed.

Falls back to polling where file notifications are unavailable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.initial, "initial", true, "Index existing papers before watching")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Quiet period before a batch is indexed")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	records, err := p.loadRegistry()
	if err != nil {
		return err
	}

	papersDir := p.papersDir()
	if err := os.MkdirAll(papersDir, 0o755); err != nil {
		return fmt.Errorf("failed to create papers dir: %w", err)
	}

	emb, err := p.newEmbedder(ctx, "")
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	s, err := p.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Sink:     s,
		Embedder: emb,
		Chunker:  chunk.NewSectionChunker(chunk.Options{MaxLen: p.cfg.Chunking.MaxLen}),
		Registry: records,
	})
	if err != nil {
		return err
	}

	base := index.Options{
		PapersDir:      papersDir,
		PrependSection: p.cfg.Chunking.PrependSection,
		Collection:     p.cfg.Storage.DefaultCollection,
		BatchSize:      p.cfg.Embeddings.BatchSize,
	}

	out := cmd.OutOrStdout()
	if opts.initial {
		sum, err := runner.Run(ctx, base)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Initial index: %d processed, %d skipped, %d failed, %d chunks\n",
			sum.Processed, sum.Skipped, sum.Failed, sum.Chunks)
	}

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = opts.debounce
	w, err := watcher.NewHybridWatcher(wopts)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Watching %s (%s watcher). Press Ctrl+C to stop.\n", papersDir, w.WatcherType())
	slog.Info("watch_started", slog.String("root", papersDir), slog.String("type", w.WatcherType()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx, papersDir)
	})
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return watcher.Serve(gctx, w, papersDir, watcher.IndexHandler(runner, base))
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("watch_stopped")
	return nil
}
