// Package catalog stores chunk text and metadata in SQLite. It backs
// keyword retrieval, which needs full chunk text to scan for weighted
// terms, and records which documents have been indexed.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kpxlab/marketrag/engine/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	doc_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	char_len    INTEGER NOT NULL,
	source_file TEXT NOT NULL,
	file_type   TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
`

// Catalog is a SQLite-backed chunk repository.
type Catalog struct {
	db *sqlx.DB
}

type chunkRow struct {
	ID         string `db:"id"`
	DocID      string `db:"doc_id"`
	Seq        int    `db:"seq"`
	Text       string `db:"text"`
	CharLen    int    `db:"char_len"`
	SourceFile string `db:"source_file"`
	FileType   string `db:"file_type"`
	Category   string `db:"category"`
}

// Open opens (creating if needed) the catalog at path. Use ":memory:" for
// an ephemeral catalog in tests.
func Open(path string) (*Catalog, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: init schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// SaveChunks upserts all chunks in one transaction.
func (c *Catalog) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO chunks (id, doc_id, seq, text, char_len, source_file, file_type, category)
		VALUES (:id, :doc_id, :seq, :text, :char_len, :source_file, :file_type, :category)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			char_len = excluded.char_len,
			source_file = excluded.source_file,
			file_type = excluded.file_type,
			category = excluded.category`
	for _, ch := range chunks {
		row := chunkRow{
			ID:         ch.ID,
			DocID:      ch.DocID,
			Seq:        ch.Seq,
			Text:       ch.Text,
			CharLen:    ch.CharLen,
			SourceFile: ch.SourceFile,
			FileType:   string(ch.FileType),
			Category:   ch.Category,
		}
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return fmt.Errorf("catalog: save chunk %s: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

// HasDocument reports whether any chunk of the document is stored.
func (c *Catalog) HasDocument(ctx context.Context, docID string) (bool, error) {
	var n int
	err := c.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return false, fmt.Errorf("catalog: has document %s: %w", docID, err)
	}
	return n > 0, nil
}

// DeleteDocument removes all chunks of a document.
func (c *Catalog) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("catalog: delete document %s: %w", docID, err)
	}
	return nil
}

// SearchText returns up to limit chunks containing at least one of the
// terms, case-insensitively. An empty category matches all categories.
func (c *Catalog) SearchText(ctx context.Context, terms []string, limit int, category string) ([]domain.Chunk, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(terms)+2)
	sb.WriteString(`SELECT id, doc_id, seq, text, char_len, source_file, file_type, category FROM chunks WHERE (`)
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("lower(text) LIKE ?")
		args = append(args, "%"+strings.ToLower(term)+"%")
	}
	sb.WriteString(")")
	if category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, category)
	}
	sb.WriteString(" ORDER BY doc_id, seq LIMIT ?")
	args = append(args, limit)

	var rows []chunkRow
	if err := c.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("catalog: search text: %w", err)
	}

	chunks := make([]domain.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = domain.Chunk{
			ID:         r.ID,
			DocID:      r.DocID,
			Seq:        r.Seq,
			Text:       r.Text,
			CharLen:    r.CharLen,
			SourceFile: r.SourceFile,
			FileType:   domain.FileType(r.FileType),
			Category:   r.Category,
		}
	}
	return chunks, nil
}

// Stats summarizes catalog contents.
type Stats struct {
	Chunks    int `db:"chunks"`
	Documents int `db:"documents"`
}

// Stats returns chunk and document counts.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.db.GetContext(ctx, &st,
		`SELECT COUNT(1) AS chunks, COUNT(DISTINCT doc_id) AS documents FROM chunks`)
	if err != nil {
		return Stats{}, fmt.Errorf("catalog: stats: %w", err)
	}
	return st, nil
}
