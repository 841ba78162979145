package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

// Client talks to a local Ollama server for both chat and embeddings.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.executor = exec
		}
	}
}

func New(baseURL, chatModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
		executor:   resilience.NewExecutor(resilience.Policy{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends one system + user exchange at temperature 0.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	request := map[string]any{
		"model": c.chatModel,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"stream":  false,
		"options": map[string]any{"temperature": 0},
	}

	var response struct {
		Message chatMessage `json:"message"`
	}
	if err := c.postJSON(ctx, resilience.OpChat, "/api/chat", request, &response); err != nil {
		return "", resilience.WrapUpstreamError("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, resilience.OpEmbed, "/api/embed", request, &response); err != nil {
		return nil, resilience.WrapUpstreamError("ollama embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, resilience.WrapUpstreamError("ollama embed", errors.New("embedding count does not match input count"))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
