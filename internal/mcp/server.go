package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/paperrag/internal/citation"
	"github.com/Aman-CERP/paperrag/internal/config"
	"github.com/Aman-CERP/paperrag/internal/registry"
	"github.com/Aman-CERP/paperrag/internal/search"
	"github.com/Aman-CERP/paperrag/internal/store"
	"github.com/Aman-CERP/paperrag/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "paperrag"

// MaxTopK caps top_k requested by clients.
const MaxTopK = 50

// PaperSource looks up stored papers. *store.Store satisfies it.
type PaperSource interface {
	FindPaper(ctx context.Context, doi, citationKey string) (*store.Paper, error)
	CountChunks(ctx context.Context, paperID string) (int, error)
}

// Server exposes search_papers and paper_info to MCP clients.
type Server struct {
	mcp      *mcp.Server
	searcher search.Searcher
	papers   PaperSource
	registry []registry.Record
	config   *config.Config
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: "search_papers",
		Description: "Hybrid keyword and semantic search over the indexed journal papers. " +
			"Returns the best matching chunks with DOI, citation key, section and source so answers can be cited.",
	},
	{
		Name: "paper_info",
		Description: "Look up one indexed paper by DOI or citation key. " +
			"Returns title, authors, journal, issue date, collection, chunk count and a BibTeX entry when known.",
	},
}

// NewServer creates a server. records may be nil when no registry exists.
func NewServer(searcher search.Searcher, papers PaperSource, records []registry.Record, cfg *config.Config) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if papers == nil {
		return nil, errors.New("paper source is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		searcher: searcher,
		papers:   papers,
		registry: records,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-style arguments and returns
// its structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_papers":
		var in SearchPapersInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		results, err := s.searchPapers(ctx, in)
		if err != nil {
			return nil, err
		}
		out := ToSearchOutput(results)
		return &out, nil
	case "paper_info":
		var in PaperInfoInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.paperInfo(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) searchPapers(ctx context.Context, in SearchPapersInput) ([]*search.Result, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if in.TopK < 0 {
		return nil, NewInvalidParamsError("top_k must be positive")
	}
	topK := in.TopK
	if topK == 0 {
		topK = s.config.Search.TopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("top_k", topK),
		slog.String("collection", in.Collection))

	results, err := s.searcher.Search(ctx, query, search.Options{TopK: topK, Collection: in.Collection})
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	kept := results[:0:0]
	for _, r := range results {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// ToSearchOutput converts engine results to the tool output schema.
func ToSearchOutput(results []*search.Result) SearchPapersOutput {
	out := SearchPapersOutput{Results: make([]PaperHit, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, PaperHit{
			Score:       r.Score,
			Text:        r.Text,
			Section:     r.Section,
			DOI:         r.DOI,
			CitationKey: r.CitationKey,
			Source:      r.Source,
			ChunkIndex:  r.ChunkIndex,
			Collection:  r.Collection,
			ImageRefs:   r.ImageRefs,
		})
	}
	return out
}

func (s *Server) paperInfo(ctx context.Context, in PaperInfoInput) (*PaperInfoOutput, error) {
	doi := citation.NormalizeDOI(in.DOI)
	key := strings.TrimSpace(in.CitationKey)
	if doi == "" && key == "" {
		return nil, NewInvalidParamsError("doi or citation_key is required")
	}

	paper, err := s.papers.FindPaper(ctx, doi, key)
	if err != nil {
		return nil, MapError(err)
	}

	rec := s.lookupRecord(doi, key, paper)
	if paper == nil && rec == nil {
		return nil, MapError(ErrPaperNotFound)
	}

	out := &PaperInfoOutput{}
	if paper != nil {
		n, err := s.papers.CountChunks(ctx, paper.ID)
		if err != nil {
			return nil, MapError(err)
		}
		*out = PaperInfoOutput{
			DOI:         paper.DOI,
			CitationKey: paper.CitationKey,
			Title:       paper.Title,
			Journal:     paper.Journal,
			Issued:      paper.Issued,
			URL:         paper.URL,
			Collection:  paper.Collection,
			Chunks:      n,
			Synthetic:   !citation.IsRealDOI(paper.DOI),
		}
	}
	if rec != nil {
		fillFromRecord(out, rec)
	}
	return out, nil
}

// lookupRecord finds the registry entry for a request or a stored paper.
func (s *Server) lookupRecord(doi, key string, paper *store.Paper) *registry.Record {
	if len(s.registry) == 0 {
		return nil
	}
	candidates := [][2]string{{doi, key}}
	if paper != nil {
		candidates = append(candidates, [2]string{paper.DOI, paper.CitationKey})
	}
	for _, c := range candidates {
		if i := registry.FindByDOI(s.registry, c[0]); i >= 0 {
			return &s.registry[i]
		}
		if i := registry.FindByKey(s.registry, c[1]); i >= 0 {
			return &s.registry[i]
		}
	}
	return nil
}

// fillFromRecord adds registry details without overriding stored values.
func fillFromRecord(out *PaperInfoOutput, rec *registry.Record) {
	out.Topic = rec.Topic
	if out.CitationKey == "" {
		out.CitationKey = rec.CitationKey
	}
	if out.Title == "" {
		out.Title = rec.Title
	}
	if out.DOI == "" {
		out.DOI = citation.NormalizeDOI(rec.DOI)
		out.Synthetic = out.DOI != "" && !citation.IsRealDOI(out.DOI)
	}
	if rec.CSL == nil {
		return
	}
	for _, a := range rec.CSL.Author {
		if name := a.Display(); name != "" {
			out.Authors = append(out.Authors, name)
		}
	}
	if out.Journal == "" {
		out.Journal = rec.CSL.ContainerTitle.String()
	}
	if out.Issued == "" {
		out.Issued = rec.CSL.IssuedISO()
	}
	if out.URL == "" {
		out.URL = rec.CSL.URL
	}
	out.BibTeX = citation.BibTeX(rec.CSL)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchPapersHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpPaperInfoHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchPapersHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchPapersInput) (
	*mcp.CallToolResult,
	SearchPapersOutput,
	error,
) {
	results, err := s.searchPapers(ctx, input)
	if err != nil {
		return nil, SearchPapersOutput{}, err
	}
	return textResult(FormatSearchResults(input.Query, results)), ToSearchOutput(results), nil
}

func (s *Server) mcpPaperInfoHandler(ctx context.Context, _ *mcp.CallToolRequest, input PaperInfoInput) (
	*mcp.CallToolResult,
	PaperInfoOutput,
	error,
) {
	out, err := s.paperInfo(ctx, input)
	if err != nil {
		return nil, PaperInfoOutput{}, err
	}
	return textResult(FormatPaperInfo(out)), *out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
