package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tsunagu/internal/models"
)

// SQLiteStore implements Store on an embedded SQLite database. Document and
// chunk nodes live in tables; document-to-document edges live in an edges
// table keyed by the typed relationship name. The NEXT chain is derived from
// the contiguous position invariant rather than materialized rows.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.Setup(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Setup creates the schema. Idempotent.
func (s *SQLiteStore) Setup(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		category TEXT,
		path TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_position ON chunks(doc_id, position);

	CREATE TABLE IF NOT EXISTS edges (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, type)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_from_type ON edges(from_id, type);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// MergeDocument inserts or replaces a document by ID.
func (s *SQLiteStore) MergeDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, category, path, metadata)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   category = excluded.category,
		   path = excluded.path,
		   metadata = excluded.metadata`,
		doc.ID, doc.Title, doc.Category, doc.Path, string(metadataJSON),
	)
	return err
}

// MergeChunks inserts or replaces chunks in one transaction.
func (s *SQLiteStore) MergeChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, doc_id, position, text)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   doc_id = excluded.doc_id,
		   position = excluded.position,
		   text = excluded.text`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Position, ch.Text); err != nil {
			return fmt.Errorf("failed to merge chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// Relate merges a typed document-to-document edge.
func (s *SQLiteStore) Relate(ctx context.Context, fromDocID, toDocID string, rel models.RelType) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (from_id, to_id, type) VALUES (?, ?, ?)`,
		fromDocID, toDocID, rel.String(),
	)
	return err
}

// RelateByCategory links every pair of documents sharing a non-empty category.
func (s *SQLiteStore) RelateByCategory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (from_id, to_id, type)
		 SELECT d1.id, d2.id, ?
		 FROM documents d1
		 JOIN documents d2 ON d1.category = d2.category AND d1.id <> d2.id
		 WHERE d1.category <> ''`,
		models.RelRelatedTo.String(),
	)
	return err
}

// AddTopics merges HAS_TOPIC edges to topic tokens.
func (s *SQLiteStore) AddTopics(ctx context.Context, docID string, topics []string) error {
	for _, topic := range topics {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO edges (from_id, to_id, type) VALUES (?, ?, ?)`,
			docID, topic, models.RelHasTopic.String(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string
	err := row.Scan(&doc.ID, &doc.Title, &doc.Category, &doc.Path, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

const documentColumns = "id, title, category, path, metadata"

// DocumentByID returns the document or (nil, nil) when absent.
func (s *SQLiteStore) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// DocumentByChunk returns the owning document of a chunk, or (nil, nil).
func (s *SQLiteStore) DocumentByChunk(ctx context.Context, chunkID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.title, d.category, d.path, d.metadata
		 FROM documents d JOIN chunks c ON c.doc_id = d.id
		 WHERE c.id = ?`, chunkID)
	return scanDocument(row)
}

// ChunkByID returns the chunk or (nil, nil) when absent.
func (s *SQLiteStore) ChunkByID(ctx context.Context, id string) (*models.Chunk, error) {
	var ch models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, doc_id, position, text FROM chunks WHERE id = ?`, id,
	).Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// DocumentChunks returns a document's chunks ordered by position.
func (s *SQLiteStore) DocumentChunks(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, position, text FROM chunks
		 WHERE doc_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text); err != nil {
			return nil, err
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}

// RelatedDocuments returns up to limit documents linked by RELATED_TO.
func (s *SQLiteStore) RelatedDocuments(ctx context.Context, docID string, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.category, d.path, d.metadata
		 FROM edges e JOIN documents d ON d.id = e.to_id
		 WHERE e.from_id = ? AND e.type = ?
		 ORDER BY d.id LIMIT ?`,
		docID, models.RelRelatedTo.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// DocumentsByCategory returns up to limit documents with the given category.
func (s *SQLiteStore) DocumentsByCategory(ctx context.Context, category string, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE category = ? ORDER BY id LIMIT ?`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Walk follows the position-derived NEXT chain, closest chunk first.
func (s *SQLiteStore) Walk(ctx context.Context, chunkID string, dir Direction, maxDepth int) ([]*models.Chunk, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	center, err := s.ChunkByID(ctx, chunkID)
	if err != nil || center == nil {
		return nil, err
	}
	var rows *sql.Rows
	if dir == Forward {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, doc_id, position, text FROM chunks
			 WHERE doc_id = ? AND position > ? AND position <= ?
			 ORDER BY position`,
			center.DocumentID, center.Position, center.Position+maxDepth)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, doc_id, position, text FROM chunks
			 WHERE doc_id = ? AND position < ? AND position >= ?
			 ORDER BY position DESC`,
			center.DocumentID, center.Position, center.Position-maxDepth)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Categories returns the distinct non-empty category values.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM documents WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats returns node counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.GraphStats, error) {
	var stats models.GraphStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT category) FROM documents WHERE category <> ''`).Scan(&stats.Categories); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Clear removes all rows.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	for _, table := range []string{"edges", "chunks", "documents"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
