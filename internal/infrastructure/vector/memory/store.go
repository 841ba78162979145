package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// Store is an in-process cosine-similarity store for tests and single-node
// deployments without Qdrant or pgvector.
type Store struct {
	mu          sync.RWMutex
	generations map[string][]entry
}

func New() *Store {
	return &Store{generations: make(map[string][]entry)}
}

func (s *Store) Reset(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[generation] = nil
	return nil
}

func (s *Store) Upsert(_ context.Context, generation string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	entries := make([]entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = entry{chunk: chunk, vector: vectors[i], norm: norm(vectors[i])}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[generation] = append(s.generations[generation], entries...)
	return nil
}

func (s *Store) Search(_ context.Context, generation string, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	entries := s.generations[generation]
	s.mu.RUnlock()

	if limit <= 0 || len(entries) == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	queryNorm := norm(vector)

	scored := make([]domain.RetrievedChunk, 0, len(entries))
	for _, e := range entries {
		scored = append(scored, domain.RetrievedChunk{
			Chunk:     e.chunk,
			MatchType: domain.MatchSemantic,
			Score:     cosine(vector, e.vector, queryNorm, e.norm),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) Drop(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, generation)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
