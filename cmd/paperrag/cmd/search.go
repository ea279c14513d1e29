package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/paperrag/internal/embed"
	"github.com/Aman-CERP/paperrag/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK        int
	collection  string
	format      string // "text", "json"
	keywordOnly bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed papers",
		Long: `Search the indexed papers using hybrid search.

Combines keyword (full-text) and semantic (embedding) search with
Reciprocal Rank Fusion. Each hit carries the DOI, citation key,
section and source so it can be cited.

Examples:
  paperrag search "statin therapy in older adults"
  paperrag search "sepsis mortality" --top-k 10 --collection cardiology
  paperrag search "randomized trial" --keyword-only --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Restrict to one collection (empty searches all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Use keyword search only (skip query embedding)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (supported: text, json)", opts.format)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}
	s, err := p.requireStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var emb embed.Embedder
	if !opts.keywordOnly {
		emb, err = p.newEmbedder(ctx, "")
		if err != nil {
			return err
		}
		defer func() { _ = emb.Close() }()
	}

	engine, err := search.NewEngineForStore(s, emb, search.ConfigFromSearch(p.cfg.Search))
	if err != nil {
		return err
	}

	topK := opts.topK
	if topK <= 0 {
		topK = p.cfg.Search.TopK
	}
	slog.Info("search_started", slog.String("query", query), slog.Int("top_k", topK))
	results, err := engine.Search(ctx, query, search.Options{
		TopK:        topK,
		Collection:  opts.collection,
		KeywordOnly: opts.keywordOnly,
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", len(results)))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printSearchResults(cmd.OutOrStdout(), query, results)
	return nil
}

func printSearchResults(w io.Writer, query string, results []*search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(w, "No results for %q\n", query)
		return
	}
	_, _ = fmt.Fprintf(w, "Found %d result(s) for %q\n\n", len(results), query)
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "%d. %s  [%.3f]\n", i+1, r.CitationKey, r.Score)
		_, _ = fmt.Fprintf(w, "   DOI: %s  Chunk: %d  Collection: %s\n", r.DOI, r.ChunkIndex, r.Collection)
		if r.Section != "" {
			_, _ = fmt.Fprintf(w, "   Section: %s\n", r.Section)
		}
		if r.Source != "" {
			_, _ = fmt.Fprintf(w, "   Source: %s\n", r.Source)
		}
		_, _ = fmt.Fprintf(w, "   %s\n\n", snippet(r.Text, 300))
	}
}

// snippet flattens whitespace and truncates to n runes.
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "..."
}
