package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/cleanup"
	"github.com/Aman-CERP/paperrag/internal/output"
)

func newCleanCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Strip references and boilerplate into -RAG.md files",
		Long: `Clean converted Markdown for retrieval. For every
papers/<key>/md_with_images/<name>.md the references section and
publisher boilerplate (affiliations, funding, conflicts, journal
banners) are removed and the result is written to <name>-RAG.md.

Existing -RAG.md files are left untouched.

Examples:
  paperrag clean
  paperrag clean --file output/papers/smith2024heart/md_with_images/paper.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd.Context(), cmd, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Clean a single Markdown file")

	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, file string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	cleaner, err := p.cleaner()
	if err != nil {
		return err
	}

	sources := []string{file}
	if file == "" {
		sources, err = cleanup.DiscoverSources(p.papersDir())
		if err != nil {
			return err
		}
	}

	out := output.New(cmd.OutOrStdout())
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, created, err := cleaner.CleanFile(src)
		switch {
		case err != nil:
			slog.Warn("clean_failed", slog.String("path", src), slog.String("error", err.Error()))
			out.Fail(src, err)
		case created:
			out.OK(path, "")
		default:
			out.Skip(path, "exists")
		}
	}

	out.Summary("Cleaned")
	return out.Err("clean")
}
