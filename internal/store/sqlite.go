package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
`

// SQLiteStore keeps embedded chunks in a single SQLite file and searches
// them by exhaustive cosine similarity.
type SQLiteStore struct {
	db       *sql.DB
	embedder llm.Embedder
}

// OpenSQLite opens (or creates) the database at path and runs migrations
func OpenSQLite(path string, embedder llm.Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces chunks. Chunks without an ID get a fresh UUID.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, source_id, text, vector, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, id, c.SourceID, c.Text, llm.EncodeVector(c.Vector), now); err != nil {
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Retrieve embeds query and returns the topK most similar chunks
func (s *SQLiteStore) Retrieve(ctx context.Context, query string, topK int) ([]model.EvidenceItem, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []model.EvidenceItem{}, nil
	}

	qvec, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_id, text, vector FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	items := make([]model.EvidenceItem, 0, n)
	for rows.Next() {
		var sourceID, text string
		var blob []byte
		if err := rows.Scan(&sourceID, &text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, ok := llm.DecodeVector(blob)
		if !ok || len(vec) != len(qvec) {
			continue
		}
		items = append(items, model.EvidenceItem{
			Text:     text,
			SourceID: sourceID,
			Score:    clampScore(cosine(qvec, vec)),
			Scored:   true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	return rankTop(items, topK), nil
}
