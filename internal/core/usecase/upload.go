package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

var supportedCatalogExtensions = map[string]struct{}{
	".pdf":  {},
	".xlsx": {},
}

// UploadCatalogUseCase stores a new catalog and queues its indexing run.
type UploadCatalogUseCase struct {
	repo    ports.CatalogRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewUploadCatalogUseCase(
	repo ports.CatalogRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *UploadCatalogUseCase {
	return &UploadCatalogUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *UploadCatalogUseCase) Upload(ctx context.Context, filename string, body io.Reader) (*domain.IndexRun, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := supportedCatalogExtensions[ext]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload catalog", fmt.Errorf("unsupported file type %q", ext))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	run := &domain.IndexRun{
		ID:         id,
		Source:     filepath.Base(filename),
		StorageKey: storageKey,
		Status:     domain.RunQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create index run: %w", err)
	}
	if err := uc.queue.PublishReindexRequested(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("publish reindex request: %w", err)
	}
	return run, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "catalog.bin"
	}
	return base
}
