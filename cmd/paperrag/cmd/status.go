package cmd

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/store"
	"github.com/Aman-CERP/paperrag/internal/ui"
)

type statusOptions struct {
	jsonOutput bool
	noColor    bool
	offline    bool
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show paper store status",
		Long: `Show the number of indexed papers and chunks per collection, the
size of each storage component and whether the embedder is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip the embedder availability check")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts statusOptions) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	s, err := p.requireStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	dataDir := p.dataDir()
	info := ui.StatusInfo{
		DataDir:        dataDir,
		Papers:         stats.Papers,
		Chunks:         stats.Chunks,
		Collections:    stats.Collections,
		MetadataSize:   fileSize(filepath.Join(dataDir, store.MetaFileName)) + fileSize(filepath.Join(dataDir, store.MetaFileName+"-wal")),
		VectorBackend:  p.cfg.Storage.VectorBackend,
		KeywordBackend: p.cfg.Storage.KeywordBackend,
		EmbedderModel:  p.cfg.Embeddings.Model,
		EmbedderStatus: "offline",
	}
	if store.KeywordBackend(p.cfg.Storage.KeywordBackend) == store.KeywordBackendBleve {
		info.KeywordSize = dirSize(filepath.Join(dataDir, store.KeywordDirName))
	}
	if store.VectorBackend(p.cfg.Storage.VectorBackend) == store.VectorBackendChromem {
		info.VectorSize = dirSize(filepath.Join(dataDir, store.ChromemDirName))
	} else {
		info.VectorSize = dirSize(filepath.Join(dataDir, store.VectorsDirName))
	}

	if !opts.offline {
		info.EmbedderModel, info.EmbedderStatus = probeEmbedder(ctx, p)
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), opts.noColor)
	if opts.jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

// probeEmbedder reports the configured model and whether it answers.
func probeEmbedder(ctx context.Context, p *project) (model, status string) {
	model = p.cfg.Embeddings.Model
	emb, err := p.newEmbedder(ctx, "")
	if err != nil {
		slog.Debug("status_embedder_unavailable", slog.String("error", err.Error()))
		return model, "offline"
	}
	defer func() { _ = emb.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if emb.Available(ctx) {
		return emb.ModelName(), "ready"
	}
	return emb.ModelName(), "offline"
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
