package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// SQLiteStore holds papers_meta, chunks and the chunks_fts keyword table.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS papers_meta (
	id           TEXT PRIMARY KEY,
	doi          TEXT NOT NULL DEFAULT '',
	citation_key TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	journal      TEXT NOT NULL DEFAULT '',
	issued       TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	source_path  TEXT NOT NULL DEFAULT '',
	collection   TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers_meta(lower(doi));
CREATE INDEX IF NOT EXISTS idx_papers_key ON papers_meta(lower(citation_key));

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	paper_id     TEXT NOT NULL,
	collection   TEXT NOT NULL,
	doi          TEXT NOT NULL DEFAULT '',
	citation_key TEXT NOT NULL DEFAULT '',
	section      TEXT NOT NULL DEFAULT '',
	chunk_index  INTEGER NOT NULL,
	hash         TEXT NOT NULL,
	image_refs   TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL,
	source_path  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_paper ON chunks(paper_id, collection);
CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(hash);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	collection UNINDEXED,
	content,
	tokenize='unicode61'
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// validateSQLiteIntegrity checks an existing database before opening it.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// OpenSQLite opens or creates the database at path. An empty path gives
// an in-memory database for tests. A corrupted file is refused, never
// cleared: it holds the only copy of paper metadata.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := validateSQLiteIntegrity(path); err != nil {
			return nil, perrors.New(perrors.ErrCodeStoreCorrupt, "paper store failed integrity check", err).
				WithDetail("path", path).
				WithSuggestion("Restore the database from backup or move it aside and re-index")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so pragmas are executed
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

const paperColumns = `id, doi, citation_key, title, journal, issued, url, source_path, collection, created_at, updated_at`

func scanPaper(row interface{ Scan(...any) error }) (*Paper, error) {
	var p Paper
	var created, updated string
	if err := row.Scan(&p.ID, &p.DOI, &p.CitationKey, &p.Title, &p.Journal, &p.Issued,
		&p.URL, &p.SourcePath, &p.Collection, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &p, nil
}

// FindPaper returns the paper whose DOI or citation key matches,
// case-insensitively. Empty arguments never match. DOI wins over key.
func (s *SQLiteStore) FindPaper(ctx context.Context, doi, citationKey string) (*Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	doi = strings.TrimSpace(doi)
	citationKey = strings.TrimSpace(citationKey)
	if doi == "" && citationKey == "" {
		return nil, nil
	}

	query := `SELECT ` + paperColumns + ` FROM papers_meta
		WHERE (? != '' AND lower(doi) = lower(?))
		   OR (? != '' AND lower(citation_key) = lower(?))
		ORDER BY CASE WHEN ? != '' AND lower(doi) = lower(?) THEN 0 ELSE 1 END, created_at
		LIMIT 1`
	p, err := scanPaper(s.db.QueryRowContext(ctx, query, doi, doi, citationKey, citationKey, doi, doi))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find paper: %w", err)
	}
	return p, nil
}

// GetPaper returns the paper with the given ID, or nil.
func (s *SQLiteStore) GetPaper(ctx context.Context, id string) (*Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	p, err := scanPaper(s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers_meta WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return p, nil
}

// UpsertPaper inserts p or fills the empty fields of the row that already
// has its ID, DOI or citation key. Non-empty fields are never replaced.
func (s *SQLiteStore) UpsertPaper(ctx context.Context, p *Paper) (string, error) {
	existing, err := s.GetPaper(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		if existing, err = s.FindPaper(ctx, p.DOI, p.CitationKey); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	now := s.now().UTC().Format(time.RFC3339)

	if existing != nil {
		_, err := s.db.ExecContext(ctx, `UPDATE papers_meta SET
			doi          = CASE WHEN doi = '' THEN ? ELSE doi END,
			citation_key = CASE WHEN citation_key = '' THEN ? ELSE citation_key END,
			title        = CASE WHEN title = '' THEN ? ELSE title END,
			journal      = CASE WHEN journal = '' THEN ? ELSE journal END,
			issued       = CASE WHEN issued = '' THEN ? ELSE issued END,
			url          = CASE WHEN url = '' THEN ? ELSE url END,
			source_path  = CASE WHEN source_path = '' THEN ? ELSE source_path END,
			collection   = CASE WHEN collection = '' THEN ? ELSE collection END,
			updated_at   = ?
			WHERE id = ?`,
			p.DOI, p.CitationKey, p.Title, p.Journal, p.Issued, p.URL, p.SourcePath, p.Collection,
			now, existing.ID)
		if err != nil {
			return "", fmt.Errorf("update paper: %w", err)
		}
		return existing.ID, nil
	}

	id := p.ID
	if id == "" {
		id = p.DOI
	}
	if id == "" {
		id = p.CitationKey
	}
	if id == "" {
		return "", perrors.ValidationError("paper has no identity", nil)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO papers_meta (`+paperColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.DOI, p.CitationKey, p.Title, p.Journal, p.Issued, p.URL, p.SourcePath, p.Collection, now, now)
	if err != nil {
		return "", fmt.Errorf("insert paper: %w", err)
	}
	return id, nil
}

// ChunkIDs returns the IDs of a paper's chunks in a collection, by chunk index.
func (s *SQLiteStore) ChunkIDs(ctx context.Context, paperID, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE paper_id = ? AND collection = ? ORDER BY chunk_index`, paperID, collection)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertChunks writes chunk rows in transactions of batchSize rows.
// Existing rows with the same ID are replaced.
func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []*Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		if err := s.insertChunkBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) insertChunkBatch(ctx context.Context, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks
		(id, paper_id, collection, doi, citation_key, section, chunk_index, hash, image_refs, text, source_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.PaperID, c.Collection, c.DOI, c.CitationKey, c.Section,
			c.ChunkIndex, c.Hash, strings.Join(c.ImageRefs, ImageRefSeparator), c.Text, c.SourcePath); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteChunks removes chunk rows by ID.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	placeholders, args := inClause(ids)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, placeholders), args...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// GetChunks returns chunks by ID in the order given. Unknown IDs are skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, paper_id, collection, doi, citation_key, section,
		chunk_index, hash, image_refs, text, source_path FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		var c Chunk
		var refs string
		if err := rows.Scan(&c.ID, &c.PaperID, &c.Collection, &c.DOI, &c.CitationKey, &c.Section,
			&c.ChunkIndex, &c.Hash, &refs, &c.Text, &c.SourcePath); err != nil {
			return nil, err
		}
		if refs != "" {
			c.ImageRefs = strings.Split(refs, ImageRefSeparator)
		}
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// CountChunks returns the number of chunks stored for a paper.
func (s *SQLiteStore) CountChunks(ctx context.Context, paperID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE paper_id = ?`, paperID).Scan(&n)
	return n, err
}

// Stats counts papers and chunks per collection.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	st := &Stats{Collections: map[string]int{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers_meta`).Scan(&st.Papers); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM chunks GROUP BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		st.Collections[name] = n
		st.Chunks += n
	}
	return st, rows.Err()
}

// Keyword returns the FTS5 keyword index sharing this database.
func (s *SQLiteStore) Keyword() *SQLiteKeywordIndex {
	return &SQLiteKeywordIndex{store: s, stopWords: BuildStopWordMap(DefaultStopWords)}
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// inClause returns "?,?,..." and the matching args.
func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
