package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/intake"
	"github.com/Aman-CERP/paperrag/internal/output"
	"github.com/Aman-CERP/paperrag/internal/registry"
)

type ingestOptions struct {
	offline bool
	workers int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Check PDFs, resolve DOIs and update the registry",
		Long: `Scan the input PDFs, extract their DOI and title, fetch CSL metadata
from Crossref, rename each PDF to its citation key and merge it into
the registry (input/input_pdf.json by default).

PDFs under input/topics/<topic>/ are registered with that topic, which
later selects the collection their chunks are stored in.

Examples:
  paperrag ingest
  paperrag ingest --offline --workers 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip Crossref lookups (titles come from the PDFs)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent PDF extractions (default: number of CPUs)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, opts ingestOptions) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	checker := intake.NewChecker(nil)
	if !opts.offline {
		client, err := p.crossrefClient()
		if err != nil {
			return err
		}
		checker = intake.NewChecker(client)
	}

	out := output.New(cmd.OutOrStdout())
	scanner := intake.NewScanner(intake.Options{
		InputDir:     p.path(p.cfg.Paths.Input),
		PDFDir:       p.path(p.cfg.Paths.PDFs),
		TopicsDir:    p.path(p.cfg.Paths.Topics),
		CitationsDir: p.path(p.cfg.Paths.Citations),
		Workers:      opts.workers,
	}, checker, registry.NewStore(p.registryPath()), func(o intake.Outcome) {
		printIngestOutcome(out, o)
	})

	slog.Info("ingest_started", slog.String("root", p.root), slog.Bool("offline", opts.offline))
	summary, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	out.Statusf("\nFound %d PDF(s): %d added, %d merged, %d skipped, %d failed (%s)",
		summary.Found, summary.Added, summary.Merged, summary.Skipped, summary.Failed,
		summary.Duration.Round(time.Millisecond))
	if summary.Failed > 0 {
		return fmt.Errorf("%d PDF(s) failed", summary.Failed)
	}
	return nil
}

func printIngestOutcome(w *output.Writer, o intake.Outcome) {
	name := filepath.Base(o.Original)
	switch {
	case o.Err != nil:
		w.Fail(name, o.Err)
	case o.Skipped:
		w.Skip(name, "already registered as "+o.CitationKey)
	default:
		detail := fmt.Sprintf("%s [%s] doi=%s", filepath.Base(o.Path), o.Action, o.DOI)
		if o.Topic != "" {
			detail += " topic=" + o.Topic
		}
		w.OK(name, detail)
	}
}
