package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/config"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// VectorBackend selects the vector store implementation.
type VectorBackend string

const (
	// VectorBackendHNSW uses coder/hnsw graphs saved as gob files (default).
	VectorBackendHNSW VectorBackend = "hnsw"

	// VectorBackendChromem uses chromem-go's persistent DB.
	VectorBackendChromem VectorBackend = "chromem"
)

// KeywordBackend selects the keyword index implementation.
type KeywordBackend string

const (
	// KeywordBackendSQLite uses FTS5 inside papers.db (default).
	KeywordBackendSQLite KeywordBackend = "sqlite"

	// KeywordBackendBleve uses a separate Bleve index directory.
	KeywordBackendBleve KeywordBackend = "bleve"
)

// File names inside the data directory.
const (
	MetaFileName   = "papers.db"
	VectorsDirName = "vectors"
	ChromemDirName = "chromem"
	KeywordDirName = "keyword.bleve"
)

// Options configures Open.
type Options struct {
	// DataDir holds all store files. Empty keeps everything in memory.
	DataDir        string
	VectorBackend  VectorBackend
	KeywordBackend KeywordBackend
	InsertBatch    int
}

// OptionsFromConfig builds Options from the storage section, resolving
// the data directory against root.
func OptionsFromConfig(root string, cfg *config.Config) Options {
	return Options{
		DataDir:        config.Resolve(root, cfg.Paths.Data),
		VectorBackend:  VectorBackend(strings.ToLower(cfg.Storage.VectorBackend)),
		KeywordBackend: KeywordBackend(strings.ToLower(cfg.Storage.KeywordBackend)),
		InsertBatch:    cfg.Storage.InsertBatch,
	}
}

// Exists reports whether an index has been written to dataDir.
func Exists(dataDir string) bool {
	info, err := os.Stat(filepath.Join(dataDir, MetaFileName))
	return err == nil && !info.IsDir()
}

// Store bundles paper metadata, vectors and keywords. It implements Sink
// for the indexing pipeline.
type Store struct {
	meta        *SQLiteStore
	vectors     VectorStore
	keywords    KeywordIndex
	insertBatch int
}

// Verify interface implementation at compile time
var _ Sink = (*Store)(nil)

// Open opens or creates every backend under opts.DataDir.
func Open(opts Options) (*Store, error) {
	path := func(name string) string {
		if opts.DataDir == "" {
			return ""
		}
		return filepath.Join(opts.DataDir, name)
	}

	meta, err := OpenSQLite(path(MetaFileName))
	if err != nil {
		return nil, err
	}

	var vectors VectorStore
	switch opts.VectorBackend {
	case VectorBackendHNSW, "":
		vectors, err = NewHNSWVectorStore(path(VectorsDirName))
	case VectorBackendChromem:
		vectors, err = NewChromemVectorStore(path(ChromemDirName))
	default:
		err = fmt.Errorf("unknown vector backend: %s (valid options: hnsw, chromem)", opts.VectorBackend)
	}
	if err != nil {
		_ = meta.Close()
		return nil, perrors.New(perrors.ErrCodeStorageFailed, "failed to open vector store", err)
	}

	var keywords KeywordIndex
	switch opts.KeywordBackend {
	case KeywordBackendSQLite, "":
		keywords = meta.Keyword()
	case KeywordBackendBleve:
		keywords, err = NewBleveKeywordIndex(path(KeywordDirName))
	default:
		err = fmt.Errorf("unknown keyword backend: %s (valid options: sqlite, bleve)", opts.KeywordBackend)
	}
	if err != nil {
		_ = vectors.Close()
		_ = meta.Close()
		return nil, perrors.New(perrors.ErrCodeStorageFailed, "failed to open keyword index", err)
	}

	batch := opts.InsertBatch
	if batch <= 0 {
		batch = DefaultInsertBatch
	}
	return &Store{meta: meta, vectors: vectors, keywords: keywords, insertBatch: batch}, nil
}

// NewStore assembles a Store from already open parts.
func NewStore(meta *SQLiteStore, vectors VectorStore, keywords KeywordIndex, insertBatch int) *Store {
	if insertBatch <= 0 {
		insertBatch = DefaultInsertBatch
	}
	return &Store{meta: meta, vectors: vectors, keywords: keywords, insertBatch: insertBatch}
}

// Meta returns the SQLite paper and chunk store.
func (s *Store) Meta() *SQLiteStore { return s.meta }

// Vectors returns the vector store.
func (s *Store) Vectors() VectorStore { return s.vectors }

// Keywords returns the keyword index.
func (s *Store) Keywords() KeywordIndex { return s.keywords }

// FindPaper implements Sink.
func (s *Store) FindPaper(ctx context.Context, doi, citationKey string) (*Paper, error) {
	return s.meta.FindPaper(ctx, doi, citationKey)
}

// CountChunks returns the number of chunks stored for a paper.
func (s *Store) CountChunks(ctx context.Context, paperID string) (int, error) {
	return s.meta.CountChunks(ctx, paperID)
}

// UpsertPaper implements Sink.
func (s *Store) UpsertPaper(ctx context.Context, p *Paper) (string, error) {
	id, err := s.meta.UpsertPaper(ctx, p)
	if err != nil && perrors.GetCode(err) == "" {
		return "", perrors.New(perrors.ErrCodeStorageFailed, "failed to upsert paper", err).WithDetail("doi", p.DOI)
	}
	return id, err
}

// ChunkID derives a chunk ID from its paper, collection, index and the
// generation it was written in. IDs of one generation never collide with
// those of another, so a replacement can be written beside the chunks it
// replaces.
func ChunkID(paperID, collection string, index int, generation string) string {
	sum := sha256.Sum256([]byte(paperID + "|" + collection + "|" + strconv.Itoa(index) + "|" + generation))
	return hex.EncodeToString(sum[:])[:32]
}

func newGeneration() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate chunk generation: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// StoreChunks replaces the paper's chunks in each collection they name.
// New chunks are written to every backend under fresh IDs before the old
// ones are removed. A failed write removes what it wrote, leaving the
// previous chunks in place.
func (s *Store) StoreChunks(ctx context.Context, paperID string, chunks []*Chunk) error {
	byCollection := make(map[string][]*Chunk)
	var order []string
	for _, c := range chunks {
		if c.Collection == "" {
			c.Collection = DefaultCollection
		}
		if _, seen := byCollection[c.Collection]; !seen {
			order = append(order, c.Collection)
		}
		byCollection[c.Collection] = append(byCollection[c.Collection], c)
	}

	generation, err := newGeneration()
	if err != nil {
		return perrors.New(perrors.ErrCodeStorageFailed, "failed to store chunks", err)
	}

	for _, collection := range order {
		if err := s.replaceChunks(ctx, paperID, collection, generation, byCollection[collection]); err != nil {
			code := perrors.ErrCodeStorageFailed
			var dim ErrDimensionMismatch
			if errors.As(err, &dim) {
				code = perrors.ErrCodeDimensionMismatch
			}
			return perrors.New(code, "failed to store chunks", err).
				WithDetail("paper", paperID).
				WithDetail("collection", collection)
		}
	}

	if err := s.vectors.Flush(); err != nil {
		return perrors.New(perrors.ErrCodeStorageFailed, "failed to persist vectors", err)
	}
	return nil
}

func (s *Store) replaceChunks(ctx context.Context, paperID, collection, generation string, chunks []*Chunk) error {
	old, err := s.meta.ChunkIDs(ctx, paperID, collection)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		c.PaperID = paperID
		c.ID = ChunkID(paperID, collection, c.ChunkIndex, generation)
	}

	var written []string
	for start := 0; start < len(chunks); start += s.insertBatch {
		batch := chunks[start:min(start+s.insertBatch, len(chunks))]
		ids := make([]string, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
		}
		written = append(written, ids...)

		if err := s.writeBatch(ctx, collection, batch, ids); err != nil {
			s.discard(collection, written)
			return err
		}
	}

	if err := s.meta.DeleteChunks(ctx, old); err != nil {
		s.discard(collection, written)
		return err
	}
	// The rows are gone, so leftover vectors or postings are never
	// returned by a search.
	if err := s.vectors.Delete(ctx, collection, old); err != nil {
		slog.Warn("stale_vectors_left", slog.String("paper", paperID), slog.String("error", err.Error()))
	}
	if err := s.keywords.Delete(ctx, old); err != nil {
		slog.Warn("stale_keywords_left", slog.String("paper", paperID), slog.String("error", err.Error()))
	}
	return nil
}

func (s *Store) writeBatch(ctx context.Context, collection string, batch []*Chunk, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.meta.InsertChunks(ctx, batch, s.insertBatch); err != nil {
		return err
	}

	vecs := make([][]float32, len(batch))
	docs := make([]*Document, len(batch))
	for i, c := range batch {
		vecs[i] = c.Vector
		docs[i] = &Document{ID: c.ID, Collection: collection, Content: c.Text}
	}
	if err := s.vectors.Add(ctx, collection, ids, vecs); err != nil {
		return err
	}
	return s.keywords.Index(ctx, docs)
}

// discard removes chunks written by a failed replacement. It runs on a
// fresh context so a cancelled run still cleans up.
func (s *Store) discard(collection string, ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx := context.Background()
	err := errors.Join(
		s.meta.DeleteChunks(ctx, ids),
		s.vectors.Delete(ctx, collection, ids),
		s.keywords.Delete(ctx, ids),
	)
	if err != nil {
		slog.Warn("discard_partial_chunks_failed",
			slog.String("collection", collection),
			slog.Int("chunks", len(ids)),
			slog.String("error", err.Error()))
	}
}

// Stats reports paper and chunk counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	return s.meta.Stats(ctx)
}

// Close flushes and closes every backend. The keyword index closes before
// the SQLite store it may share.
func (s *Store) Close() error {
	var errs []error
	if err := s.vectors.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.keywords.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.meta.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close store: %v", errs)
	}
	return nil
}
