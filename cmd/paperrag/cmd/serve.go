package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/logging"
	"github.com/Aman-CERP/paperrag/internal/mcp"
	"github.com/Aman-CERP/paperrag/internal/search"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the paper index to MCP clients",
		Long: `Start an MCP server exposing two tools:

  search_papers  hybrid search returning cited chunks
  paper_info     metadata and BibTeX for one paper

stdout carries JSON-RPC only; logs go to ~/.paperrag/logs/.

Example client configuration:
  {"command": "paperrag", "args": ["serve"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport (stdio)")

	return cmd
}

func runServe(ctx context.Context, transport string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	level := p.cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.Install(logging.ServeConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	s, err := p.requireStore()
	if err != nil {
		slog.Error("serve_no_index", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = s.Close() }()

	emb, err := p.newEmbedder(ctx, "")
	if err != nil {
		slog.Error("serve_embedder_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = emb.Close() }()

	engine, err := search.NewEngineForStore(s, emb, search.ConfigFromSearch(p.cfg.Search))
	if err != nil {
		return err
	}

	records, err := p.loadRegistry()
	if err != nil {
		slog.Warn("serve_registry_unavailable",
			slog.String("path", p.registryPath()),
			slog.String("error", err.Error()))
		records = nil
	}

	srv, err := mcp.NewServer(engine, s, records, p.cfg)
	if err != nil {
		return err
	}

	slog.Info("serve_started",
		slog.String("root", p.root),
		slog.String("model", emb.ModelName()),
		slog.Int("registry_records", len(records)))
	if err := srv.Serve(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
