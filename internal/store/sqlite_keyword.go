package store

import (
	"context"
	"fmt"
	"strings"
)

// SQLiteKeywordIndex implements KeywordIndex over the chunks_fts table of
// a SQLiteStore. It shares the store's connection and lock; closing it
// leaves the store open.
type SQLiteKeywordIndex struct {
	store     *SQLiteStore
	stopWords map[string]struct{}
}

// Verify interface implementation at compile time
var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// prepare tokenizes text the same way for indexing and querying.
func (k *SQLiteKeywordIndex) prepare(text string) []string {
	return FilterStopWords(Tokenize(text), k.stopWords)
}

// Index adds documents. An existing document ID is replaced.
func (k *SQLiteKeywordIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks_fts(chunk_id, collection, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		content := strings.Join(k.prepare(doc.Content), " ")
		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, doc.Collection, content); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns chunks matching any query term, best BM25 score first.
func (k *SQLiteKeywordIndex) Search(ctx context.Context, collection, queryStr string, limit int) ([]*KeywordResult, error) {
	s := k.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	tokens := uniqueTokens(k.prepare(queryStr))
	if len(tokens) == 0 || limit <= 0 {
		return []*KeywordResult{}, nil
	}

	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " OR ")

	// bm25() is negative; lower is a better match
	query := `SELECT chunk_id, bm25(chunks_fts) AS score FROM chunks_fts
		WHERE chunks_fts MATCH ? AND (? = '' OR collection = ?)
		ORDER BY score LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, match, collection, collection, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*KeywordResult{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := []*KeywordResult{}
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &KeywordResult{DocID: id, Score: -score, MatchedTerms: tokens})
	}
	return results, rows.Err()
}

// Delete removes documents from the index.
func (k *SQLiteKeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	placeholders, args := inClause(ids)
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM chunks_fts WHERE chunk_id IN (%s)`, placeholders), args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks, or 0 once closed.
func (k *SQLiteKeywordIndex) Count() int {
	s := k.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close is a no-op; the owning SQLiteStore closes the database.
func (k *SQLiteKeywordIndex) Close() error { return nil }
