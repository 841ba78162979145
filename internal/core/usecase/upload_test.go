package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestUploadStoresCatalogAndQueuesRun(t *testing.T) {
	repo := newCatalogRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewUploadCatalogUseCase(repo, storage, queue)

	run, err := uc.Upload(context.Background(), "Product Catalog 2026.PDF", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)

	assert.Equal(t, domain.RunQueued, run.Status)
	assert.Equal(t, "Product Catalog 2026.PDF", run.Source)
	assert.Equal(t, run.ID+"_Product_Catalog_2026.PDF", run.StorageKey)
	assert.Equal(t, []byte("%PDF-1.7"), storage.files[run.StorageKey])
	assert.Equal(t, []string{run.ID}, queue.requested)

	stored, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StorageKey, stored.StorageKey)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	storage := newStorageFake()
	uc := NewUploadCatalogUseCase(newCatalogRepoFake(), storage, &queueFake{})

	_, err := uc.Upload(context.Background(), "notes.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
	assert.Empty(t, storage.files)
}

func TestUploadPropagatesQueueFailure(t *testing.T) {
	uc := NewUploadCatalogUseCase(newCatalogRepoFake(), newStorageFake(), &queueFake{err: errors.New("nats down")})

	_, err := uc.Upload(context.Background(), "catalog.xlsx", strings.NewReader("PK"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_catalog_v2.pdf", sanitizeFilename("../my catalog v2.pdf"))
	assert.Equal(t, "Katalog_.pdf", sanitizeFilename("Katalogü.pdf"))
	assert.Equal(t, "catalog.bin", sanitizeFilename(""))
}
