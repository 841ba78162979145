package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS index_runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	storage_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_index_runs_status_updated ON index_runs(status, updated_at DESC);

CREATE TABLE IF NOT EXISTS catalog_chunks (
	run_id TEXT NOT NULL REFERENCES index_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	page INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	source TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// CatalogRepository persists index runs and the chunk set of the active run.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	return ApplySchema(ctx, r.db, catalogSchema)
}

func (r *CatalogRepository) CreateRun(ctx context.Context, run *domain.IndexRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO index_runs (id, source, storage_key, status, chunk_count, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		run.ID, run.Source, run.StorageKey, string(run.Status), run.ChunkCount, run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert index run: %w", err)
	}
	return nil
}

const selectRunColumns = `SELECT id, source, storage_key, status, chunk_count, error_message, created_at, updated_at FROM index_runs`

func (r *CatalogRepository) GetRun(ctx context.Context, id string) (*domain.IndexRun, error) {
	row := r.db.QueryRowContext(ctx, selectRunColumns+` WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get index run", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan index run: %w", err)
	}
	return run, nil
}

func (r *CatalogRepository) LatestReadyRun(ctx context.Context) (*domain.IndexRun, error) {
	row := r.db.QueryRowContext(ctx, selectRunColumns+` WHERE status = $1 ORDER BY updated_at DESC LIMIT 1`, string(domain.RunReady))
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "latest index run", errors.New("no ready run"))
		}
		return nil, fmt.Errorf("scan index run: %w", err)
	}
	return run, nil
}

func (r *CatalogRepository) UpdateRunStatus(ctx context.Context, id string, status domain.IndexRunStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE index_runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update index run status: %w", err)
	}
	return ensureAffected(res, "update index run status", id)
}

// CompleteRun stores the run's chunks, prunes chunks of every other run and
// marks the run ready, all in one transaction.
func (r *CatalogRepository) CompleteRun(ctx context.Context, id string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_chunks WHERE run_id <> $1`, id); err != nil {
		return fmt.Errorf("prune previous chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_chunks WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("clear run chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO catalog_chunks (run_id, position, content, page, content_type, source)
VALUES ($1,$2,$3,$4,$5,$6)
`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for i, chunk := range chunks {
			if _, err := stmt.ExecContext(ctx, id, i, chunk.Content, chunk.Page, string(chunk.ContentType), chunk.Source); err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
	}

	res, err := tx.ExecContext(ctx, `
UPDATE index_runs
SET status = $2, chunk_count = $3, error_message = '', updated_at = $4
WHERE id = $1
`, id, string(domain.RunReady), len(chunks), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark index run ready: %w", err)
	}
	if err := ensureAffected(res, "complete index run", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListChunks(ctx context.Context, runID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT content, page, content_type, source
FROM catalog_chunks
WHERE run_id = $1
ORDER BY position
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, 256)
	for rows.Next() {
		var chunk domain.Chunk
		var contentType string
		if err := rows.Scan(&chunk.Content, &chunk.Page, &contentType, &chunk.Source); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.ContentType = domain.ContentType(contentType)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.IndexRun, error) {
	var run domain.IndexRun
	var status string
	if err := row.Scan(
		&run.ID, &run.Source, &run.StorageKey, &status, &run.ChunkCount, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.Status = domain.IndexRunStatus(status)
	return &run, nil
}

func ensureAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
