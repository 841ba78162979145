package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

const (
	defaultRetrievalK     = 8
	defaultEmbedBatchSize = 64
)

// HybridIndex serves keyword and semantic retrieval over one indexing
// generation at a time. Queries read an immutable snapshot; rebuilds are
// serialized and swap the snapshot only after the new generation is complete.
type HybridIndex struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	keywords  ports.KeywordIndexBuilder
	batchSize int

	rebuildMu sync.Mutex
	current   atomic.Pointer[indexGeneration]
}

type indexGeneration struct {
	id      string
	size    int
	keyword ports.KeywordIndex
}

type HybridIndexOption func(*HybridIndex)

func WithEmbedBatchSize(n int) HybridIndexOption {
	return func(h *HybridIndex) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

func NewHybridIndex(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	keywords ports.KeywordIndexBuilder,
	opts ...HybridIndexOption,
) *HybridIndex {
	h := &HybridIndex{
		embedder:  embedder,
		vectors:   vectors,
		keywords:  keywords,
		batchSize: defaultEmbedBatchSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Generation returns the active generation id, or "" before the first build.
func (h *HybridIndex) Generation() string {
	if gen := h.current.Load(); gen != nil {
		return gen.id
	}
	return ""
}

// Size returns the chunk count of the active generation.
func (h *HybridIndex) Size() int {
	if gen := h.current.Load(); gen != nil {
		return gen.size
	}
	return 0
}

// Rebuild embeds chunks into a fresh generation, activates it and drops the
// previously active generation.
func (h *HybridIndex) Rebuild(ctx context.Context, generation string, chunks []domain.Chunk) error {
	return h.RebuildAndCommit(ctx, generation, chunks, nil)
}

// RebuildAndCommit embeds chunks into a fresh generation and calls commit
// before activating it. When commit fails the new generation is dropped and
// the active one keeps serving.
func (h *HybridIndex) RebuildAndCommit(
	ctx context.Context,
	generation string,
	chunks []domain.Chunk,
	commit func(context.Context) error,
) error {
	if generation == "" {
		return domain.WrapError(domain.ErrInvalidInput, "rebuild index", errors.New("generation is required"))
	}

	h.rebuildMu.Lock()
	defer h.rebuildMu.Unlock()

	if err := h.vectors.Reset(ctx, generation); err != nil {
		return fmt.Errorf("reset vector generation: %w", err)
	}
	if err := h.embedAndUpsert(ctx, generation, chunks); err != nil {
		h.dropGeneration(ctx, generation, "drop_partial_generation_failed")
		return err
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			h.dropGeneration(ctx, generation, "drop_uncommitted_generation_failed")
			return err
		}
	}

	h.replace(ctx, generation, chunks)
	return nil
}

// Restore activates a generation whose vectors are already persisted,
// rebuilding only the in-memory keyword sub-index. The replaced generation is
// dropped.
func (h *HybridIndex) Restore(ctx context.Context, generation string, chunks []domain.Chunk) {
	h.rebuildMu.Lock()
	defer h.rebuildMu.Unlock()
	h.replace(ctx, generation, chunks)
}

func (h *HybridIndex) replace(ctx context.Context, generation string, chunks []domain.Chunk) {
	previous := h.activate(generation, chunks)
	if previous != nil && previous.id != generation {
		h.dropGeneration(ctx, previous.id, "drop_previous_generation_failed")
	}
}

func (h *HybridIndex) dropGeneration(ctx context.Context, generation, event string) {
	if err := h.vectors.Drop(context.WithoutCancel(ctx), generation); err != nil {
		slog.Warn(event, "generation", generation, "error", err)
	}
}

func (h *HybridIndex) embedAndUpsert(ctx context.Context, generation string, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += h.batchSize {
		end := min(start+h.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := h.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(batch))
		}
		if err := h.vectors.Upsert(ctx, generation, batch, vectors); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}
	return nil
}

func (h *HybridIndex) activate(generation string, chunks []domain.Chunk) *indexGeneration {
	next := &indexGeneration{id: generation, size: len(chunks)}
	if len(chunks) > 0 {
		switch {
		case h.keywords == nil:
			slog.Warn("hybrid_keyword_unavailable", "generation", generation, "error", "no keyword index configured")
		default:
			keyword, err := h.keywords.Build(chunks)
			if err != nil {
				slog.Warn("hybrid_keyword_unavailable", "generation", generation, "error", err)
			} else {
				next.keyword = keyword
			}
		}
	}
	slog.Info("index_generation_active", "generation", generation, "chunks", len(chunks), "keyword", next.keyword != nil)
	return h.current.Swap(next)
}

// Query returns keyword hits first in keyword rank order, then semantic hits
// whose content is not already present. Each chunk keeps the match type of
// the sub-index that contributed it first.
func (h *HybridIndex) Query(ctx context.Context, text string, k int) ([]domain.RetrievedChunk, error) {
	gen := h.current.Load()
	if gen == nil || gen.size == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if k <= 0 {
		k = defaultRetrievalK
	}

	merged := make([]domain.RetrievedChunk, 0, 2*k)
	seen := make(map[string]struct{}, 2*k)
	add := func(chunk domain.Chunk, matchType domain.MatchType, score float64) {
		if _, dup := seen[chunk.Content]; dup {
			return
		}
		seen[chunk.Content] = struct{}{}
		merged = append(merged, domain.RetrievedChunk{Chunk: chunk, MatchType: matchType, Score: score})
	}

	if gen.keyword != nil {
		for _, chunk := range gen.keyword.Search(text, k) {
			add(chunk, domain.MatchKeyword, 0)
		}
	}

	vector, err := h.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	semantic, err := h.vectors.Search(ctx, gen.id, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	for _, hit := range semantic {
		add(hit.Chunk, domain.MatchSemantic, hit.Score)
	}
	return merged, nil
}
