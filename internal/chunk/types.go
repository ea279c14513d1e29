package chunk

// DefaultMaxLen is the default upper bound on chunk length, in characters.
const DefaultMaxLen = 7000

// SectionSeparator joins heading titles into a section path string.
const SectionSeparator = " / "

// Raw is a chunk as produced by the chunker, before document identity
// is attached.
type Raw struct {
	Text      string   // Non-empty, at most MaxLen characters
	Path      []string // Heading titles in effect when the block began
	ImageRefs []string // Image targets from the source paragraph, in order
}

// Section returns the joined section path, "" for pre-heading content.
func (r Raw) Section() string {
	return joinPath(r.Path)
}

// Identity is the document-level provenance attached to every record.
type Identity struct {
	DOI         string
	CitationKey string
	SourcePath  string
}

// Record is the unit of storage: a chunk with ordinal, hash and provenance.
// Records are immutable once built; reprocessing a document builds new ones.
type Record struct {
	DOI         string
	CitationKey string
	SourcePath  string
	Section     string
	ChunkIndex  int
	Text        string
	ImageRefs   []string
	Hash        string // ContentHash(Text)
}

// Chunker splits a document body into raw chunks.
type Chunker interface {
	Split(body string) []Raw
}

var _ Chunker = (*SectionChunker)(nil)
