package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// CatalogRepository keeps index runs in process memory. It backs
// deployments without Postgres, where a restart always re-indexes.
type CatalogRepository struct {
	mu     sync.RWMutex
	runs   map[string]domain.IndexRun
	chunks map[string][]domain.Chunk
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		runs:   make(map[string]domain.IndexRun),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (r *CatalogRepository) CreateRun(_ context.Context, run *domain.IndexRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[run.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create index run", fmt.Errorf("duplicate id=%s", run.ID))
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *CatalogRepository) GetRun(_ context.Context, id string) (*domain.IndexRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get index run", fmt.Errorf("id=%s", id))
	}
	return &run, nil
}

func (r *CatalogRepository) UpdateRunStatus(_ context.Context, id string, status domain.IndexRunStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update index run status", fmt.Errorf("id=%s", id))
	}
	run.Status = status
	run.Error = errMessage
	run.UpdatedAt = time.Now().UTC()
	r.runs[id] = run
	return nil
}

func (r *CatalogRepository) CompleteRun(_ context.Context, id string, chunks []domain.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "complete index run", fmt.Errorf("id=%s", id))
	}
	run.Status = domain.RunReady
	run.ChunkCount = len(chunks)
	run.Error = ""
	run.UpdatedAt = time.Now().UTC()
	r.runs[id] = run
	r.chunks = map[string][]domain.Chunk{id: append([]domain.Chunk(nil), chunks...)}
	return nil
}

func (r *CatalogRepository) LatestReadyRun(_ context.Context) (*domain.IndexRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.IndexRun
	for _, run := range r.runs {
		if run.Status != domain.RunReady {
			continue
		}
		if latest == nil || run.UpdatedAt.After(latest.UpdatedAt) {
			candidate := run
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "latest index run", errors.New("no ready run"))
	}
	return latest, nil
}

func (r *CatalogRepository) ListChunks(_ context.Context, runID string) ([]domain.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Chunk(nil), r.chunks[runID]...), nil
}
