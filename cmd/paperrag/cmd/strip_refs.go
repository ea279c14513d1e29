package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/cleanup"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

type stripRefsOptions struct {
	out   string
	extra string
}

func newStripRefsCmd() *cobra.Command {
	var opts stripRefsOptions

	cmd := &cobra.Command{
		Use:   "strip-refs <file>",
		Short: "Remove the references section from a Markdown file",
		Long: `Cut a Markdown document at its first References, Bibliography or
Works Cited heading. YAML front matter is kept as is. The result is
written next to the input as <stem>-no-ref.md unless --out is given.

Examples:
  paperrag strip-refs paper.md
  paperrag strip-refs paper.md --extra "Appendix|Notes" --out clean.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStripRefs(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.out, "out", "", "Output path (default: <stem>-no-ref.md)")
	cmd.Flags().StringVar(&opts.extra, "extra", "", "Extra heading names that start the cut, pipe-separated (e.g. 'Appendix|Notes')")

	return cmd
}

func runStripRefs(cmd *cobra.Command, input string, opts stripRefsOptions) error {
	var extra []string
	for _, s := range strings.Split(opts.extra, "|") {
		if s = strings.TrimSpace(s); s != "" {
			extra = append(extra, s)
		}
	}
	pattern, err := cleanup.ReferencePattern(extra)
	if err != nil {
		return perrors.New(perrors.ErrCodeInvalidInput, "invalid --extra pattern", err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return perrors.New(perrors.ErrCodeFileNotFound, "failed to read input", err).
			WithDetail("path", input)
	}

	out := opts.out
	if out == "" {
		out = noRefPath(input)
	}
	if err := os.WriteFile(out, []byte(cleanup.StripDocument(string(data), pattern)), 0o644); err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to write output", err).
			WithDetail("path", out)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote cleaned Markdown to: %s\n", out)
	return err
}

func noRefPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "-no-ref.md"
}
