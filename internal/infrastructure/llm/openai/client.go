package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/catalog-assistant/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultChatModel      = "google/gemini-3-flash-preview"
	DefaultEmbeddingModel = "openai/text-embedding-3-small"
	defaultTimeout        = 120 * time.Second
)

var ErrNoAPIKey = errors.New("LLM API key is not set")

type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client serves chat completions and embeddings from any OpenAI-compatible
// endpoint (OpenRouter by default).
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	executor       *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Policy{})
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		executor:       executor,
	}, nil
}

// Complete runs a two-message chat completion at temperature 0. The
// smallest non-zero float is sent because go-openai omits a zero temperature.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: math.SmallestNonzeroFloat32,
	}

	resp, err := resilience.Call(ctx, c.executor, resilience.OpChat, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		return resp, normalizeError("chat", err)
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return "", resilience.WrapUpstreamError("llm complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", resilience.WrapUpstreamError("llm complete", errors.New("no choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := resilience.Call(ctx, c.executor, resilience.OpEmbed, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.embeddingModel,
		})
		return resp, normalizeError("embed", err)
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return nil, resilience.WrapUpstreamError("llm embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, resilience.WrapUpstreamError("llm embed",
			fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// normalizeError lifts SDK errors carrying an HTTP status into
// resilience.HTTPStatusError so they classify like every other upstream.
func normalizeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{
			Service:    "llm",
			Operation:  operation,
			StatusCode: apiErr.HTTPStatusCode,
			Status:     fmt.Sprintf("%d %s", apiErr.HTTPStatusCode, http.StatusText(apiErr.HTTPStatusCode)),
			Body:       apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{
			Service:    "llm",
			Operation:  operation,
			StatusCode: reqErr.HTTPStatusCode,
			Status:     fmt.Sprintf("%d %s", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode)),
			Body:       reqErr.Error(),
		}
	}
	return err
}
