package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// StatusInfo describes the state of a paper store.
type StatusInfo struct {
	DataDir     string         `json:"data_dir"`
	Papers      int            `json:"papers"`
	Chunks      int            `json:"chunks"`
	Collections map[string]int `json:"collections"`

	// Storage sizes (in bytes)
	MetadataSize int64 `json:"metadata_size"`
	KeywordSize  int64 `json:"keyword_size"`
	VectorSize   int64 `json:"vector_size"`

	VectorBackend  string `json:"vector_backend"`
	KeywordBackend string `json:"keyword_backend"`
	EmbedderModel  string `json:"embedder_model,omitempty"`
	EmbedderStatus string `json:"embedder_status"` // "ready", "offline"
}

// TotalSize is the sum of all storage sizes.
func (s StatusInfo) TotalSize() int64 {
	return s.MetadataSize + s.KeywordSize + s.VectorSize
}

// StatusRenderer displays store status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Paper store: "+info.DataDir))

	_, _ = fmt.Fprintf(r.out, "  Papers: %d\n", info.Papers)
	_, _ = fmt.Fprintf(r.out, "  Chunks: %d\n", info.Chunks)
	if len(info.Collections) > 0 {
		names := make([]string, 0, len(info.Collections))
		for name := range info.Collections {
			names = append(names, name)
		}
		sort.Strings(names)
		_, _ = fmt.Fprintln(r.out, "  Collections:")
		for _, name := range names {
			_, _ = fmt.Fprintf(r.out, "    %-24s %d\n", name, info.Collections[name])
		}
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Metadata: %s\n", FormatBytes(info.MetadataSize))
	_, _ = fmt.Fprintf(r.out, "    Keyword:  %s (%s)\n", FormatBytes(info.KeywordSize), info.KeywordBackend)
	_, _ = fmt.Fprintf(r.out, "    Vectors:  %s (%s)\n", FormatBytes(info.VectorSize), info.VectorBackend)
	_, _ = fmt.Fprintf(r.out, "    Total:    %s\n", FormatBytes(info.TotalSize()))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:  %s\n", info.EmbedderModel)
	}
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.EmbedderStatus))
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	default:
		return status
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
