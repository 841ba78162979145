package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/config"
	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
	"github.com/kirillkom/catalog-assistant/internal/core/usecase"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/keyword/bm25"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/prompts"
	localqueue "github.com/kirillkom/catalog-assistant/internal/infrastructure/queue/local"
	natsqueue "github.com/kirillkom/catalog-assistant/internal/infrastructure/queue/nats"
	memoryrepo "github.com/kirillkom/catalog-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/storage/localfs"
	s3storage "github.com/kirillkom/catalog-assistant/internal/infrastructure/storage/s3"
	memoryvector "github.com/kirillkom/catalog-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/vector/qdrant"
)

const processRunTimeout = 30 * time.Minute

// App holds the wired use cases shared by the api, worker and CLI binaries.
type App struct {
	Config config.Config

	Chat     *usecase.ChatUseCase
	Indexer  *usecase.IndexCatalogUseCase
	Uploader *usecase.UploadCatalogUseCase
	Runs     ports.CatalogRepository
	Queue    ports.MessageQueue

	// InProcessJobs is set when no broker is configured and the API must
	// consume its own reindex jobs.
	InProcessJobs bool

	closers []func()
}

type options struct {
	observer ports.PipelineObserver
	model    modelClient
}

type Option func(*options)

// WithPipelineObserver reports node and turn measurements to observer.
func WithPipelineObserver(observer ports.PipelineObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// modelClient is what both LLM providers offer.
type modelClient interface {
	ports.ChatModel
	ports.Embedder
}

func withModel(model modelClient) Option {
	return func(o *options) {
		o.model = model
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resiliencePolicy(cfg))

	model := o.model
	if model == nil {
		var err error
		model, err = newModelClient(cfg, executor)
		if err != nil {
			return nil, fmt.Errorf("init llm provider: %w", err)
		}
	}

	var db *sql.DB
	if cfg.HasPostgres() {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
	}

	repo, err := newCatalogRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	vectors, err := newVectorStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	uploads, err := newUploadStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queue ports.MessageQueue
	if cfg.HasNATS() {
		nq, err := natsqueue.NewWithOptions(cfg.NATSURL, natsqueue.Subjects{
			ReindexRequested: cfg.NATSReindexSubject,
			IndexReady:       cfg.NATSIndexReadySubject,
		}, natsqueue.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, nq.Close)
		queue = nq
	} else {
		queue = localqueue.New(0)
		app.InProcessJobs = true
	}

	promptSet, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	index := usecase.NewHybridIndex(model, vectors, bm25.NewBuilder(), usecase.WithEmbedBatchSize(cfg.EmbedBatchSize))
	pipeline := usecase.NewPipeline(usecase.PipelineNodes{
		Router:    usecase.NewIntentRouter(model, promptSet.Router),
		Casual:    usecase.NewCasualResponder(model, promptSet.CasualChat),
		Retriever: index,
		Grader:    usecase.NewRelevanceGrader(model, promptSet.Grader),
		Rewriter:  usecase.NewQueryRewriter(model, promptSet.Rewriter),
		Generator: usecase.NewAnswerGenerator(model, promptSet.Generator),
	}, usecase.PipelineConfig{
		RetrievalK:  cfg.RetrievalK,
		MaxRewrites: cfg.PipelineMaxRewrites,
		Routing:     cfg.PipelineRouting,
	}, o.observer)

	app.Chat = usecase.NewChatUseCase(pipeline, o.observer)
	app.Indexer = usecase.NewIndexCatalogUseCase(usecase.IndexCatalogDeps{
		Repo:    repo,
		Uploads: uploads,
		Files:   localfs.NewRoot(filepath.Dir(cfg.CatalogPath)),
		Reader:  extractor.NewRegistry(),
		Index:   index,
		Queue:   queue,
	}, filepath.Base(cfg.CatalogPath))
	app.Uploader = usecase.NewUploadCatalogUseCase(repo, uploads, queue)
	app.Runs = repo
	app.Queue = queue

	ok = true
	return app, nil
}

// Warm restores the latest ready generation and, when nothing can be restored
// and AUTO_INDEX is set, indexes CATALOG_PATH.
func (a *App) Warm(ctx context.Context) error {
	err := a.Indexer.RestoreLatest(ctx)
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("restore latest index: %w", err)
	}
	if !a.Config.AutoIndex {
		slog.Info("index_empty", "hint", "POST /index to build the catalog index")
		return nil
	}
	result, err := a.Indexer.Reindex(ctx, "")
	if err != nil {
		return fmt.Errorf("auto index: %w", err)
	}
	slog.Info("auto_index_complete", "run_id", result.RunID, "num_chunks", result.NumChunks)
	return nil
}

// FollowIndexReady restores every generation a worker reports as ready. It
// blocks until ctx is done.
func (a *App) FollowIndexReady(ctx context.Context) error {
	return a.Queue.SubscribeIndexReady(ctx, func(handlerCtx context.Context, runID string) error {
		return a.Indexer.RestoreRun(handlerCtx, runID)
	})
}

// JobObserver measures reindex jobs consumed by ProcessJobs.
type JobObserver interface {
	ObserveQueueLag(lag time.Duration)
	StartReindex()
	FinishReindex(duration time.Duration, err error)
}

// ProcessJobs consumes reindex jobs until ctx is done. observer may be nil.
func (a *App) ProcessJobs(ctx context.Context, observer JobObserver) error {
	return a.Queue.SubscribeReindexRequested(ctx, func(handlerCtx context.Context, runID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, processRunTimeout)
		defer cancel()

		if observer == nil {
			return a.Indexer.ProcessRun(processCtx, runID)
		}
		if run, err := a.Runs.GetRun(processCtx, runID); err == nil {
			observer.ObserveQueueLag(time.Since(run.CreatedAt))
		}
		observer.StartReindex()
		started := time.Now()
		err := a.Indexer.ProcessRun(processCtx, runID)
		observer.FinishReindex(time.Since(started), err)
		return err
	})
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func resiliencePolicy(cfg config.Config) resilience.Policy {
	policy := resilience.DefaultPolicy()
	policy.Retry.Attempts = cfg.LLMRetryMaxAttempts
	policy.Breaker.Enabled = cfg.LLMBreakerEnabled
	return policy
}

func newModelClient(cfg config.Config, executor *resilience.Executor) (modelClient, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.LLMModel, cfg.EmbeddingModel,
			ollama.WithTimeout(timeout),
			ollama.WithExecutor(executor),
		), nil
	case config.ProviderOpenAI:
		client, err := openai.New(openai.Config{
			BaseURL:        cfg.LLMBaseURL,
			APIKey:         cfg.LLMAPIKey,
			ChatModel:      cfg.LLMModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        timeout,
		}, executor)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func newCatalogRepository(ctx context.Context, db *sql.DB) (ports.CatalogRepository, error) {
	if db == nil {
		return memoryrepo.NewCatalogRepository(), nil
	}
	repo := postgres.NewCatalogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure catalog schema: %w", err)
	}
	return repo, nil
}

func newVectorStore(ctx context.Context, cfg config.Config, db *sql.DB) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.VectorQdrant:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	case config.VectorPGVector:
		if db == nil {
			return nil, errors.New("pgvector backend requires postgres")
		}
		store := pgvector.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return store, nil
	case config.VectorMemory:
		return memoryvector.New(), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
	}
}

func newUploadStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err := s3storage.New(ctx, s3storage.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    cfg.S3Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure s3 bucket: %w", err)
		}
		return store, nil
	default:
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return store, nil
	}
}
