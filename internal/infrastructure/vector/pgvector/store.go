package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/repository/postgres"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS catalog_embeddings (
	id BIGSERIAL PRIMARY KEY,
	generation TEXT NOT NULL,
	content TEXT NOT NULL,
	page INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	source TEXT NOT NULL,
	embedding vector NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_embeddings_generation ON catalog_embeddings(generation);
`

// Store keeps embeddings in Postgres, one row per chunk, partitioned by
// generation.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return postgres.ApplySchema(ctx, s.db, schema)
}

func (s *Store) Reset(ctx context.Context, generation string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog_embeddings WHERE generation = $1`, generation); err != nil {
		return fmt.Errorf("reset generation: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, generation string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO catalog_embeddings (generation, content, page, content_type, source, embedding)
VALUES ($1,$2,$3,$4,$5,$6)
`)
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			generation, chunk.Content, chunk.Page, string(chunk.ContentType), chunk.Source,
			pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, generation string, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT content, page, content_type, source, 1 - (embedding <=> $2) AS score
FROM catalog_embeddings
WHERE generation = $1
ORDER BY embedding <=> $2
LIMIT $3
`, generation, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var hit domain.RetrievedChunk
		var contentType string
		if err := rows.Scan(&hit.Content, &hit.Page, &contentType, &hit.Source, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan embedding hit: %w", err)
		}
		hit.ContentType = domain.ContentType(contentType)
		hit.MatchType = domain.MatchSemantic
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding hits: %w", err)
	}
	return out, nil
}

func (s *Store) Drop(ctx context.Context, generation string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog_embeddings WHERE generation = $1`, generation); err != nil {
		return fmt.Errorf("drop generation: %w", err)
	}
	return nil
}
