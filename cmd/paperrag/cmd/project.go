package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Aman-CERP/paperrag/internal/citation"
	"github.com/Aman-CERP/paperrag/internal/cleanup"
	"github.com/Aman-CERP/paperrag/internal/config"
	"github.com/Aman-CERP/paperrag/internal/embed"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
	"github.com/Aman-CERP/paperrag/internal/registry"
	"github.com/Aman-CERP/paperrag/internal/store"
)

// project is a resolved project root with its loaded configuration.
type project struct {
	root string
	cfg  *config.Config
}

// loadProject finds the project root from the working directory and loads
// its configuration.
func loadProject() (*project, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeConfigInvalid, "failed to load configuration", err).
			WithSuggestion("Check .paperrag.yaml or run 'paperrag config show'")
	}
	slog.Debug("project_loaded", slog.String("root", root))
	return &project{root: root, cfg: cfg}, nil
}

// path resolves a configured path against the project root.
func (p *project) path(rel string) string {
	return config.Resolve(p.root, rel)
}

func (p *project) registryPath() string {
	return p.path(p.cfg.Paths.Registry)
}

func (p *project) papersDir() string {
	return p.path(p.cfg.Paths.Papers)
}

func (p *project) dataDir() string {
	return p.path(p.cfg.Paths.Data)
}

// loadRegistry reads the paper registry. A missing file is an empty registry.
func (p *project) loadRegistry() ([]registry.Record, error) {
	return registry.Load(p.registryPath())
}

func (p *project) crossrefClient() (*citation.CrossrefClient, error) {
	cc := citation.DefaultCrossrefConfig()
	cr := p.cfg.Crossref
	if cr.BaseURL != "" {
		cc.BaseURL = cr.BaseURL
	}
	cc.Mailto = cr.Mailto
	if cr.RequestsPerSecond > 0 {
		cc.RequestsPerSecond = cr.RequestsPerSecond
	}
	if cr.Timeout != "" {
		d, err := time.ParseDuration(cr.Timeout)
		if err != nil {
			return nil, perrors.New(perrors.ErrCodeConfigInvalid, "invalid crossref.timeout", err).
				WithDetail("value", cr.Timeout)
		}
		cc.Timeout = d
	}
	return citation.NewCrossrefClient(cc), nil
}

func (p *project) cleaner() (*cleanup.Cleaner, error) {
	return cleanup.NewCleaner(cleanup.Options{
		ExtraReferencePatterns: p.cfg.Cleanup.ExtraReferencePatterns,
		ExtraDropSections:      p.cfg.Cleanup.ExtraDropSections,
	})
}

// newEmbedder creates the configured embedder. model overrides the
// configured model when non-empty.
func (p *project) newEmbedder(ctx context.Context, model string) (embed.Embedder, error) {
	opts, err := embed.OptionsFromConfig(p.cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	if model != "" {
		opts.Model = model
	}
	emb, err := embed.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	slog.Debug("embedder_initialized",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", emb.ModelName()),
		slog.Int("dimensions", emb.Dimensions()))
	return emb, nil
}

// openStore opens the paper store under the data directory.
func (p *project) openStore() (*store.Store, error) {
	s, err := store.Open(store.OptionsFromConfig(p.root, p.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// requireStore opens an existing index, failing with a hint when none exists.
func (p *project) requireStore() (*store.Store, error) {
	if !store.Exists(p.dataDir()) {
		return nil, perrors.New(perrors.ErrCodeFileNotFound, "no index found", nil).
			WithDetail("data_dir", p.dataDir()).
			WithSuggestion("Run 'paperrag index' first")
	}
	return p.openStore()
}
