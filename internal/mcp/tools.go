package mcp

// SearchPapersInput defines the input schema for the search_papers tool.
type SearchPapersInput struct {
	Query      string `json:"query" jsonschema:"the question or keywords to search for"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return, default 5"`
	Collection string `json:"collection,omitempty" jsonschema:"restrict to one collection (registry topic); empty searches all"`
}

// SearchPapersOutput defines the output schema for the search_papers tool.
type SearchPapersOutput struct {
	Results []PaperHit `json:"results" jsonschema:"retrieved chunks, best first"`
}

// PaperHit is one retrieved chunk with its provenance.
type PaperHit struct {
	Score       float64  `json:"score" jsonschema:"fused relevance score between 0 and 1"`
	Text        string   `json:"text" jsonschema:"chunk text"`
	Section     string   `json:"section" jsonschema:"section path the chunk came from"`
	DOI         string   `json:"doi" jsonschema:"paper DOI, real or synthetic"`
	CitationKey string   `json:"citation_key" jsonschema:"citation key of the paper"`
	Source      string   `json:"source" jsonschema:"source URL of the paper"`
	ChunkIndex  int      `json:"chunk_index" jsonschema:"position of the chunk within the paper"`
	Collection  string   `json:"collection,omitempty" jsonschema:"collection the chunk is stored in"`
	ImageRefs   []string `json:"image_refs,omitempty" jsonschema:"figures referenced by the chunk"`
}

// PaperInfoInput defines the input schema for the paper_info tool.
// One of DOI or CitationKey is required.
type PaperInfoInput struct {
	DOI         string `json:"doi,omitempty" jsonschema:"DOI of the paper"`
	CitationKey string `json:"citation_key,omitempty" jsonschema:"citation key of the paper"`
}

// PaperInfoOutput defines the output schema for the paper_info tool.
type PaperInfoOutput struct {
	DOI         string   `json:"doi"`
	CitationKey string   `json:"citation_key"`
	Title       string   `json:"title"`
	Journal     string   `json:"journal,omitempty"`
	Issued      string   `json:"issued,omitempty"`
	URL         string   `json:"url,omitempty"`
	Collection  string   `json:"collection"`
	Chunks      int      `json:"chunks"`
	Synthetic   bool     `json:"synthetic" jsonschema:"true when the DOI was derived from content, not registered"`
	Authors     []string `json:"authors,omitempty"`
	Topic       string   `json:"topic,omitempty" jsonschema:"registry topic, if the paper is registered"`
	BibTeX      string   `json:"bibtex,omitempty"`
}
