package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/intake"
)

func newPrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Create per-paper output directories from the registry",
		Long: `Create output/papers/<citation_key>/md_with_images/ for every
registered paper. Converted Markdown goes there before 'paperrag clean'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			records, err := p.loadRegistry()
			if err != nil {
				return err
			}
			dirs, err := intake.PrepareOutputDirs(records, p.papersDir())
			if err != nil {
				return err
			}
			slog.Info("prepare_complete", slog.Int("dirs", len(dirs)))
			out := cmd.OutOrStdout()
			for _, d := range dirs {
				_, _ = fmt.Fprintln(out, d)
			}
			_, _ = fmt.Fprintf(out, "Prepared %d paper director%s\n", len(dirs), plural(len(dirs), "y", "ies"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
