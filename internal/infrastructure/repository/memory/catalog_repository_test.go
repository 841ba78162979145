package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestRunLifecycle(t *testing.T) {
	repo := NewCatalogRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateRun(ctx, &domain.IndexRun{ID: "r1", Status: domain.RunQueued, CreatedAt: now, UpdatedAt: now}))
	require.Error(t, repo.CreateRun(ctx, &domain.IndexRun{ID: "r1"}))

	require.NoError(t, repo.UpdateRunStatus(ctx, "r1", domain.RunProcessing, ""))
	_, err := repo.LatestReadyRun(ctx)
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))

	chunks := []domain.Chunk{{Content: "a", Page: 1}, {Content: "b", Page: 2}}
	require.NoError(t, repo.CompleteRun(ctx, "r1", chunks))

	run, err := repo.LatestReadyRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, 2, run.ChunkCount)

	got, err := repo.ListChunks(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestCompleteRunPrunesOlderChunks(t *testing.T) {
	repo := NewCatalogRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateRun(ctx, &domain.IndexRun{ID: "old"}))
	require.NoError(t, repo.CreateRun(ctx, &domain.IndexRun{ID: "new"}))
	require.NoError(t, repo.CompleteRun(ctx, "old", []domain.Chunk{{Content: "x"}}))
	require.NoError(t, repo.CompleteRun(ctx, "new", []domain.Chunk{{Content: "y"}}))

	old, err := repo.ListChunks(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, old)

	fresh, err := repo.ListChunks(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, []domain.Chunk{{Content: "y"}}, fresh)
}

func TestUnknownRunIsNotFound(t *testing.T) {
	repo := NewCatalogRepository()
	_, err := repo.GetRun(context.Background(), "nope")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
	assert.True(t, domain.IsKind(repo.UpdateRunStatus(context.Background(), "nope", domain.RunFailed, "x"), domain.ErrNotFound))
	assert.True(t, domain.IsKind(repo.CompleteRun(context.Background(), "nope", nil), domain.ErrNotFound))
}
