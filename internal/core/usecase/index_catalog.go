package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

// IndexCatalogUseCase runs full wipe-and-rebuild indexing of a catalog file.
type IndexCatalogUseCase struct {
	repo      ports.CatalogRepository
	uploads   ports.ObjectStorage
	files     ports.ObjectStorage
	reader    ports.DocumentReader
	extractor *ChunkExtractor
	index     *HybridIndex
	queue     ports.MessageQueue

	defaultSource string
}

type IndexCatalogDeps struct {
	Repo      ports.CatalogRepository
	Uploads   ports.ObjectStorage
	Files     ports.ObjectStorage
	Reader    ports.DocumentReader
	Extractor *ChunkExtractor
	Index     *HybridIndex
	Queue     ports.MessageQueue
}

func NewIndexCatalogUseCase(deps IndexCatalogDeps, defaultSource string) *IndexCatalogUseCase {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NewChunkExtractor()
	}
	return &IndexCatalogUseCase{
		repo:          deps.Repo,
		uploads:       deps.Uploads,
		files:         deps.Files,
		reader:        deps.Reader,
		extractor:     extractor,
		index:         deps.Index,
		queue:         deps.Queue,
		defaultSource: defaultSource,
	}
}

// Reindex synchronously rebuilds the index from a catalog file. source is a
// file name relative to the catalog directory or an upload storage key.
func (uc *IndexCatalogUseCase) Reindex(ctx context.Context, source string) (*domain.IndexResult, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = uc.defaultSource
	}
	if source == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reindex", errors.New("catalog source is required"))
	}
	if !filepath.IsLocal(filepath.FromSlash(source)) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reindex",
			fmt.Errorf("catalog source %q must be relative to the catalog directory", source))
	}

	now := time.Now().UTC()
	run := &domain.IndexRun{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    domain.RunQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create index run: %w", err)
	}
	if err := uc.ProcessRun(ctx, run.ID); err != nil {
		return nil, err
	}

	done, err := uc.repo.GetRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch index run: %w", err)
	}
	return &domain.IndexResult{Status: "ok", NumChunks: done.ChunkCount, RunID: done.ID}, nil
}

// ProcessRun executes a queued run: extract, rebuild, persist, notify.
func (uc *IndexCatalogUseCase) ProcessRun(ctx context.Context, runID string) error {
	if err := uc.markStatus(ctx, runID, domain.RunProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	started := time.Now()

	run, err := uc.repo.GetRun(ctx, runID)
	if err != nil {
		return uc.fail(ctx, runID, fmt.Errorf("fetch index run: %w", err))
	}
	slog.Info("indexing_started", "run_id", run.ID, "source", run.Source)

	chunks, err := uc.extract(ctx, run)
	if err != nil {
		return uc.fail(ctx, runID, err)
	}
	err = uc.index.RebuildAndCommit(ctx, run.ID, chunks, func(ctx context.Context) error {
		if err := uc.repo.CompleteRun(ctx, run.ID, chunks); err != nil {
			return fmt.Errorf("persist index run: %w", err)
		}
		return nil
	})
	if err != nil {
		return uc.fail(ctx, runID, fmt.Errorf("rebuild index: %w", err))
	}

	slog.Info("indexing_complete",
		"run_id", run.ID,
		"num_chunks", len(chunks),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)

	if uc.queue != nil {
		if err := uc.queue.PublishIndexReady(ctx, run.ID); err != nil {
			slog.Warn("publish_index_ready_failed", "run_id", run.ID, "error", err)
		}
	}
	return nil
}

// RestoreRun activates a completed run without re-embedding. It is a no-op
// when the run is already active or a newer run has become ready since.
func (uc *IndexCatalogUseCase) RestoreRun(ctx context.Context, runID string) error {
	if uc.index.Generation() == runID {
		return nil
	}
	run, err := uc.repo.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetch index run: %w", err)
	}
	if run.Status == domain.RunReady {
		latest, err := uc.repo.LatestReadyRun(ctx)
		if err != nil {
			return fmt.Errorf("fetch latest ready run: %w", err)
		}
		if latest.ID != run.ID {
			slog.Info("index_restore_skipped", "run_id", run.ID, "latest_run_id", latest.ID)
			return nil
		}
	}
	return uc.restore(ctx, run)
}

// RestoreLatest activates the most recent ready run, if any.
func (uc *IndexCatalogUseCase) RestoreLatest(ctx context.Context) error {
	run, err := uc.repo.LatestReadyRun(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest ready run: %w", err)
	}
	if uc.index.Generation() == run.ID {
		return nil
	}
	return uc.restore(ctx, run)
}

func (uc *IndexCatalogUseCase) restore(ctx context.Context, run *domain.IndexRun) error {
	if run.Status != domain.RunReady {
		return domain.WrapError(domain.ErrInvalidInput, "restore index", fmt.Errorf("run %s is %s", run.ID, run.Status))
	}
	chunks, err := uc.repo.ListChunks(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list run chunks: %w", err)
	}
	uc.index.Restore(ctx, run.ID, chunks)
	slog.Info("index_restored", "run_id", run.ID, "num_chunks", len(chunks))
	return nil
}

func (uc *IndexCatalogUseCase) extract(ctx context.Context, run *domain.IndexRun) ([]domain.Chunk, error) {
	doc, err := uc.loadDocument(ctx, run)
	if err != nil {
		return nil, err
	}
	chunks, err := uc.extractor.Extract(doc)
	if err != nil {
		return nil, fmt.Errorf("extract chunks: %w", err)
	}
	return chunks, nil
}

func (uc *IndexCatalogUseCase) loadDocument(ctx context.Context, run *domain.IndexRun) (*domain.Document, error) {
	body, err := uc.openSource(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer body.Close()

	doc, err := uc.reader.Read(ctx, filepath.Base(run.Source), body)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return doc, nil
}

// openSource reads uploaded runs from the uploads store. Path sources are
// looked up in the catalog directory first, then as upload keys.
func (uc *IndexCatalogUseCase) openSource(ctx context.Context, run *domain.IndexRun) (io.ReadCloser, error) {
	if run.StorageKey != "" {
		if uc.uploads == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open upload", errors.New("upload storage is not configured"))
		}
		return uc.uploads.Open(ctx, run.StorageKey)
	}

	var stores []ports.ObjectStorage
	for _, store := range []ports.ObjectStorage{uc.files, uc.uploads} {
		if store != nil {
			stores = append(stores, store)
		}
	}
	if len(stores) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open source", fmt.Errorf("no storage for source %q", run.Source))
	}

	var lastErr error
	for _, store := range stores {
		body, err := store.Open(ctx, run.Source)
		if err == nil {
			return body, nil
		}
		if !domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (uc *IndexCatalogUseCase) markStatus(ctx context.Context, runID string, status domain.IndexRunStatus, errMessage string) error {
	return uc.repo.UpdateRunStatus(ctx, runID, status, errMessage)
}

func (uc *IndexCatalogUseCase) fail(ctx context.Context, runID string, processErr error) error {
	slog.Error("indexing_failed", "run_id", runID, "error", processErr)
	if err := uc.markStatus(context.WithoutCancel(ctx), runID, domain.RunFailed, processErr.Error()); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", processErr, err)
	}
	return processErr
}
