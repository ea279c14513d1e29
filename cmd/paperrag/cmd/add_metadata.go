package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/annotate"
	"github.com/Aman-CERP/paperrag/internal/cleanup"
	"github.com/Aman-CERP/paperrag/internal/output"
)

func newAddMetadataCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add-metadata",
		Short: "Write YAML front matter into -RAG.md files from the registry",
		Long: `Replace the front matter of each papers/<key>/md_with_images/*-RAG.md
with title, authors, DOI, journal, issue date and URL taken from the
registry record whose citation key matches the paper directory.

Files whose key is not registered are reported and left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddMetadata(cmd, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Annotate a single -RAG.md file")

	return cmd
}

func runAddMetadata(cmd *cobra.Command, file string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	records, err := p.loadRegistry()
	if err != nil {
		return err
	}

	files := []string{file}
	if file == "" {
		files, err = cleanup.DiscoverRAG(p.papersDir())
		if err != nil {
			return err
		}
	}

	a := annotate.New(records, p.cfg.Paths.Registry)
	out := output.New(cmd.OutOrStdout())
	for _, f := range files {
		res, err := a.File(f)
		switch {
		case err != nil:
			out.Fail(f, err)
		case res.Updated:
			out.OK(f, res.Key)
		default:
			out.Skip(f, res.Reason)
		}
	}

	out.Summary("Annotated")
	return out.Err("add-metadata")
}
