package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	VectorQdrant   = "qdrant"
	VectorPGVector = "pgvector"
	VectorMemory   = "memory"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	APIPort  string `envconfig:"API_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	LLMProvider         string `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMBaseURL          string `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	LLMAPIKey           string `envconfig:"LLM_API_KEY"`
	LLMModel            string `envconfig:"LLM_MODEL" default:"google/gemini-3-flash-preview"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"openai/text-embedding-3-small"`
	OllamaURL           string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	LLMTimeoutSeconds   int    `envconfig:"LLM_TIMEOUT_SECONDS" default:"120"`
	LLMRetryMaxAttempts int    `envconfig:"LLM_RETRY_MAX_ATTEMPTS" default:"1"`
	LLMBreakerEnabled   bool   `envconfig:"LLM_BREAKER_ENABLED" default:"true"`

	CatalogPath    string `envconfig:"CATALOG_PATH" default:"../data/product_catalog_01.pdf"`
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"local"`
	StoragePath    string `envconfig:"STORAGE_PATH" default:"./data/storage"`

	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket          string `envconfig:"S3_BUCKET" default:"catalogs"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`

	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"qdrant"`
	QdrantURL        string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"catalog"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	NATSURL               string `envconfig:"NATS_URL"`
	NATSReindexSubject    string `envconfig:"NATS_REINDEX_SUBJECT" default:"catalog.reindex"`
	NATSIndexReadySubject string `envconfig:"NATS_INDEX_READY_SUBJECT" default:"catalog.index_ready"`

	RetrievalK          int    `envconfig:"RETRIEVAL_K" default:"8"`
	EmbedBatchSize      int    `envconfig:"EMBED_BATCH_SIZE" default:"64"`
	PipelineRouting     bool   `envconfig:"PIPELINE_ROUTING" default:"true"`
	PipelineMaxRewrites int    `envconfig:"PIPELINE_MAX_REWRITES" default:"1"`
	PromptsPath         string `envconfig:"PROMPTS_PATH"`
	AutoIndex           bool   `envconfig:"AUTO_INDEX" default:"false"`

	APIRateLimitRPS   float64 `envconfig:"API_RATE_LIMIT_RPS" default:"0"`
	APIRateLimitBurst int     `envconfig:"API_RATE_LIMIT_BURST" default:"10"`

	WorkerMetricsPort string `envconfig:"WORKER_METRICS_PORT" default:"9090"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.VectorBackend = strings.ToLower(strings.TrimSpace(cfg.VectorBackend))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks shape only; reachability of dependencies is checked at
// bootstrap.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.LLMProvider, ProviderOpenAI, ProviderOllama) {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %s or %s, got %q", ProviderOpenAI, ProviderOllama, c.LLMProvider))
	}
	if !oneOf(c.VectorBackend, VectorQdrant, VectorPGVector, VectorMemory) {
		errs = append(errs, fmt.Errorf("VECTOR_BACKEND must be one of qdrant, pgvector, memory, got %q", c.VectorBackend))
	}
	if c.VectorBackend == VectorPGVector && c.PostgresDSN == "" {
		errs = append(errs, errors.New("VECTOR_BACKEND=pgvector requires POSTGRES_DSN"))
	}
	if c.HasNATS() && (c.PostgresDSN == "" || c.VectorBackend == VectorMemory) {
		errs = append(errs, errors.New("NATS_URL requires POSTGRES_DSN and a shared VECTOR_BACKEND"))
	}
	if !oneOf(c.StorageBackend, StorageLocal, StorageS3) {
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", c.StorageBackend))
	}
	if c.RetrievalK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_K must be positive"))
	}
	if c.EmbedBatchSize <= 0 {
		errs = append(errs, errors.New("EMBED_BATCH_SIZE must be positive"))
	}
	if c.PipelineMaxRewrites < 0 {
		errs = append(errs, errors.New("PIPELINE_MAX_REWRITES must not be negative"))
	}
	if c.LLMTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_SECONDS must be positive"))
	}
	if c.LLMRetryMaxAttempts <= 0 {
		errs = append(errs, errors.New("LLM_RETRY_MAX_ATTEMPTS must be positive"))
	}
	if c.APIRateLimitRPS < 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT_RPS must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) HasPostgres() bool { return c.PostgresDSN != "" }

func (c *Config) HasNATS() bool { return c.NATSURL != "" }

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
