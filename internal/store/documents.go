package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
)

// CreateDocument stores doc and its chunks in one transaction. The full-text
// index is maintained by triggers on the chunks table.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *models.Document, chunks []string) error {
	if doc.ID == "" {
		doc.ID = newULID()
	}
	doc.CreatedAt = time.Now().UTC()
	doc.ChunkCount = len(chunks)
	doc.TotalCharacters = 0
	for _, c := range chunks {
		doc.TotalCharacters += utf8.RuneCountInString(c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename, chunk_count, total_characters, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ChunkCount, doc.TotalCharacters, doc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.New(apperr.KindConflict, "document already exists: %s", doc.Filename)
	}
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, document_id, chunk_index, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, newULID(), doc.ID, i, c); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const documentColumns = `id, filename, chunk_count, total_characters, created_at`

func (s *SQLiteStore) GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error) {
	d := &models.Document{}
	err := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE filename = ?`, filename).
		Scan(&d.ID, &d.Filename, &d.ChunkCount, &d.TotalCharacters, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "document not found: %s", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []*models.Document{}
	for rows.Next() {
		d := &models.Document{}
		if err := rows.Scan(&d.ID, &d.Filename, &d.ChunkCount, &d.TotalCharacters, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocumentByFilename removes a document and its chunks.
func (s *SQLiteStore) DeleteDocumentByFilename(ctx context.Context, filename string) error {
	doc, err := s.GetDocumentByFilename(ctx, filename)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

// SearchChunks returns up to limit chunks matching query, best first. Scores
// are negated bm25 ranks, so higher is more relevant.
func (s *SQLiteStore) SearchChunks(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return []models.RetrievedChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.filename, c.chunk_index, c.content, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.seq = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.RetrievedChunk{}
	for rows.Next() {
		var c models.RetrievedChunk
		var rank float64
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Source, &c.Index, &c.Content, &rank); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Score = -rank
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DocumentStats(ctx context.Context) (docs, chunks int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)`,
	).Scan(&docs, &chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("document stats: %w", err)
	}
	return docs, chunks, nil
}

// ftsQuery turns free text into an FTS5 MATCH expression: each word becomes a
// quoted term and terms are OR-ed, so punctuation in questions cannot break
// the query syntax.
func ftsQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "do": true, "does": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"was": true, "what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "with": true, "you": true,
}
