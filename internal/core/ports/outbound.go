package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// ChatModel issues a single system+user completion against a language model.
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder computes dense vectors for indexing and querying.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore holds the semantic sub-index, partitioned by indexing generation.
type VectorStore interface {
	Reset(ctx context.Context, generation string) error
	Upsert(ctx context.Context, generation string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, generation string, vector []float32, limit int) ([]domain.RetrievedChunk, error)
	Drop(ctx context.Context, generation string) error
}

// KeywordIndex is a built, read-only lexical index.
type KeywordIndex interface {
	Search(query string, limit int) []domain.Chunk
}

// KeywordIndexBuilder builds a lexical index over a chunk set.
type KeywordIndexBuilder interface {
	Build(chunks []domain.Chunk) (KeywordIndex, error)
}

// DocumentReader parses a catalog file into pages with raw tables.
type DocumentReader interface {
	Read(ctx context.Context, name string, body io.Reader) (*domain.Document, error)
}

// ObjectStorage stores uploaded catalog files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, body io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CatalogRepository persists index runs and the chunk set of each run.
type CatalogRepository interface {
	CreateRun(ctx context.Context, run *domain.IndexRun) error
	GetRun(ctx context.Context, id string) (*domain.IndexRun, error)
	UpdateRunStatus(ctx context.Context, id string, status domain.IndexRunStatus, errMessage string) error
	CompleteRun(ctx context.Context, id string, chunks []domain.Chunk) error
	LatestReadyRun(ctx context.Context) (*domain.IndexRun, error)
	ListChunks(ctx context.Context, runID string) ([]domain.Chunk, error)
}

// MessageQueue carries reindex jobs to workers and index-ready notices back.
type MessageQueue interface {
	PublishReindexRequested(ctx context.Context, runID string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishIndexReady(ctx context.Context, runID string) error
	SubscribeIndexReady(ctx context.Context, handler func(context.Context, string) error) error
}

// PipelineObserver receives per-node and per-turn measurements.
type PipelineObserver interface {
	ObserveNode(node string, duration time.Duration, err error)
	ObserveTurn(route domain.Route, sources int, rewritten bool, duration time.Duration)
}
