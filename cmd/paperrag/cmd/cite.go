package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/citation"
)

type citeOptions struct {
	format string // "bibtex", "csl"
	save   bool
}

func newCiteCmd() *cobra.Command {
	var opts citeOptions

	cmd := &cobra.Command{
		Use:   "cite <doi>",
		Short: "Fetch citation metadata for a DOI",
		Long: `Look up a DOI on Crossref (falling back to doi.org content
negotiation) and print it as BibTeX or CSL-JSON.

With --save the CSL-JSON and BibTeX files are written to the citations
directory (output/citations by default).

Examples:
  paperrag cite 10.1001/jama.2024.1234
  paperrag cite https://doi.org/10.1056/NEJMoa2034577 --format csl --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCite(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "bibtex", "Output format: bibtex, csl")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Also save CSL-JSON and BibTeX to the citations directory")

	return cmd
}

func runCite(ctx context.Context, cmd *cobra.Command, raw string, opts citeOptions) error {
	if opts.format != "bibtex" && opts.format != "csl" {
		return fmt.Errorf("unknown format %q (supported: bibtex, csl)", opts.format)
	}
	doi, err := citation.ValidateDOI(raw)
	if err != nil {
		return err
	}

	p, err := loadProject()
	if err != nil {
		return err
	}
	client, err := p.crossrefClient()
	if err != nil {
		return err
	}
	csl, err := client.Lookup(ctx, doi)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "csl" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(csl); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(out, citation.BibTeX(csl))
	}

	if !opts.save {
		return nil
	}
	dir := p.path(p.cfg.Paths.Citations)
	cslPath, err := citation.SaveCSL(dir, doi, csl)
	if err != nil {
		return err
	}
	bibPath, err := citation.SaveBibTeX(dir, doi, csl)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s and %s\n", cslPath, bibPath)
	return nil
}
