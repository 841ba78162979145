package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestSearchRanksByCosineWithinGeneration(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx, "g1"))
	require.NoError(t, store.Upsert(ctx, "g1",
		[]domain.Chunk{{Content: "gloves"}, {Content: "syringe"}, {Content: "needle"}},
		[][]float32{{0, 1}, {1, 0}, {0.7, 0.7}},
	))
	require.NoError(t, store.Upsert(ctx, "g2", []domain.Chunk{{Content: "other"}}, [][]float32{{1, 0}}))

	got, err := store.Search(ctx, "g1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "syringe", got[0].Content)
	assert.Equal(t, "needle", got[1].Content)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, domain.MatchSemantic, got[0].MatchType)
}

func TestDropAndResetClearGeneration(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "g1", []domain.Chunk{{Content: "a"}}, [][]float32{{1}}))

	require.NoError(t, store.Reset(ctx, "g1"))
	got, err := store.Search(ctx, "g1", []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Upsert(ctx, "g1", []domain.Chunk{{Content: "a"}}, [][]float32{{1}}))
	require.NoError(t, store.Drop(ctx, "g1"))
	got, err = store.Search(ctx, "g1", []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertRejectsMismatch(t *testing.T) {
	err := New().Upsert(context.Background(), "g", []domain.Chunk{{Content: "a"}}, nil)
	assert.Error(t, err)
}
