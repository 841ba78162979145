package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

type modelCall struct {
	system string
	user   string
}

// scriptedModel answers by system prompt; unknown prompts are an error.
type scriptedModel struct {
	mu        sync.Mutex
	responses map[string]func(user string) (string, error)
	calls     []modelCall
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{responses: make(map[string]func(string) (string, error))}
}

func (m *scriptedModel) on(system string, fn func(user string) (string, error)) *scriptedModel {
	m.responses[system] = fn
	return m
}

func (m *scriptedModel) reply(system, answer string) *scriptedModel {
	return m.on(system, func(string) (string, error) { return answer, nil })
}

func (m *scriptedModel) Complete(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, modelCall{system: system, user: user})
	fn, ok := m.responses[system]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unexpected prompt %q", system)
	}
	return fn(user)
}

func (m *scriptedModel) callsFor(system string) []modelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]modelCall, 0, len(m.calls))
	for _, c := range m.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

type embedderFake struct {
	mu         sync.Mutex
	batches    [][]string
	queries    []string
	err        error
	queryErr   error
	failOnCall int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil && (f.failOnCall == 0 || len(f.batches) == f.failOnCall) {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{1, 1}, nil
}

type vectorStoreFake struct {
	mu       sync.Mutex
	upserts  map[string][]domain.Chunk
	resets   []string
	drops    []string
	searched []string
	results  []domain.RetrievedChunk
}

func newVectorStoreFake() *vectorStoreFake {
	return &vectorStoreFake{upserts: make(map[string][]domain.Chunk)}
}

func (f *vectorStoreFake) Reset(_ context.Context, generation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, generation)
	f.upserts[generation] = nil
	return nil
}

func (f *vectorStoreFake) Upsert(_ context.Context, generation string, chunks []domain.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(chunks) != len(vectors) {
		return errors.New("chunks/vectors mismatch")
	}
	f.upserts[generation] = append(f.upserts[generation], chunks...)
	return nil
}

func (f *vectorStoreFake) Search(_ context.Context, generation string, _ []float32, limit int) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, generation)
	out := f.results
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *vectorStoreFake) Drop(_ context.Context, generation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops = append(f.drops, generation)
	delete(f.upserts, generation)
	return nil
}

type keywordIndexFake struct {
	mu      sync.Mutex
	results []domain.Chunk
	queries []string
}

func (f *keywordIndexFake) Search(query string, limit int) []domain.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if len(f.results) > limit {
		return f.results[:limit]
	}
	return f.results
}

type keywordBuilderFake struct {
	index *keywordIndexFake
	err   error
	built [][]domain.Chunk
}

func (f *keywordBuilderFake) Build(chunks []domain.Chunk) (ports.KeywordIndex, error) {
	f.built = append(f.built, chunks)
	if f.err != nil {
		return nil, f.err
	}
	return f.index, nil
}

type retrieverFake struct {
	calls   []string
	results [][]domain.RetrievedChunk
	err     error
}

func (f *retrieverFake) Query(_ context.Context, text string, _ int) ([]domain.RetrievedChunk, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	idx := min(len(f.calls)-1, len(f.results)-1)
	return f.results[idx], nil
}

type observerFake struct {
	mu    sync.Mutex
	nodes []string
	turns []domain.Route
}

func (f *observerFake) ObserveNode(node string, _ time.Duration, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, node)
}

func (f *observerFake) ObserveTurn(route domain.Route, _ int, _ bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, route)
}

type catalogRepoFake struct {
	mu          sync.Mutex
	runs        map[string]*domain.IndexRun
	chunks      map[string][]domain.Chunk
	statuses    []domain.IndexRunStatus
	completeErr error
}

func newCatalogRepoFake() *catalogRepoFake {
	return &catalogRepoFake{
		runs:   make(map[string]*domain.IndexRun),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (f *catalogRepoFake) CreateRun(_ context.Context, run *domain.IndexRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyRun := *run
	f.runs[run.ID] = &copyRun
	return nil
}

func (f *catalogRepoFake) GetRun(_ context.Context, id string) (*domain.IndexRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get run", fmt.Errorf("run %s", id))
	}
	copyRun := *run
	return &copyRun, nil
}

func (f *catalogRepoFake) UpdateRunStatus(_ context.Context, id string, status domain.IndexRunStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update run", fmt.Errorf("run %s", id))
	}
	run.Status = status
	run.Error = errMessage
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *catalogRepoFake) CompleteRun(_ context.Context, id string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	run, ok := f.runs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "complete run", fmt.Errorf("run %s", id))
	}
	run.Status = domain.RunReady
	run.ChunkCount = len(chunks)
	run.UpdatedAt = time.Now().UTC()
	f.statuses = append(f.statuses, domain.RunReady)
	f.chunks = map[string][]domain.Chunk{id: chunks}
	return nil
}

func (f *catalogRepoFake) LatestReadyRun(_ context.Context) (*domain.IndexRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.IndexRun
	for _, run := range f.runs {
		if run.Status != domain.RunReady {
			continue
		}
		if latest == nil || run.UpdatedAt.After(latest.UpdatedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "latest run", errors.New("no ready run"))
	}
	copyRun := *latest
	return &copyRun, nil
}

func (f *catalogRepoFake) ListChunks(_ context.Context, runID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[runID], nil
}

type storageFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	openErr error
	opened  []string
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, key)
	if f.openErr != nil {
		return nil, f.openErr
	}
	data, ok := f.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open", fmt.Errorf("%s: no such file", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// documentReaderFake returns a fixed document, recording the name it was
// asked to read.
type documentReaderFake struct {
	doc   *domain.Document
	err   error
	names []string
}

func (f *documentReaderFake) Read(_ context.Context, name string, body io.Reader) (*domain.Document, error) {
	f.names = append(f.names, name)
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Name = name
	return &doc, nil
}

type queueFake struct {
	mu        sync.Mutex
	requested []string
	ready     []string
	err       error
}

func (f *queueFake) PublishReindexRequested(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requested = append(f.requested, runID)
	return nil
}

func (f *queueFake) SubscribeReindexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) PublishIndexReady(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, runID)
	return nil
}

func (f *queueFake) SubscribeIndexReady(context.Context, func(context.Context, string) error) error {
	return nil
}

func longText(prefix string) string {
	return prefix + " " + strings.Repeat("catalog text ", 6)
}

func retrieved(content string, page int, contentType domain.ContentType, match domain.MatchType) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			Content:     content,
			Page:        page,
			ContentType: contentType,
			Source:      "catalog.pdf",
		},
		MatchType: match,
	}
}
