package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/resilience"
)

// Client stores each index generation in its own Qdrant collection so a
// rebuild never touches the collection serving queries.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
}

func (c *Client) collectionName(generation string) string {
	return c.collection + "_" + strings.ReplaceAll(generation, "-", "")
}

// Reset removes any collection left over for the generation.
func (c *Client) Reset(ctx context.Context, generation string) error {
	return c.Drop(ctx, generation)
}

func (c *Client) Upsert(ctx context.Context, generation string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}
	name := c.collectionName(generation)
	if err := c.ensureCollection(ctx, name, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"content":      chunk.Content,
				"page":         chunk.Page,
				"content_type": string(chunk.ContentType),
				"source":       chunk.Source,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, name)
	resp, err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, "upsert")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("qdrant", "upsert", resp)
	}
	return nil
}

// Search returns an empty result when the generation has no collection,
// which happens for an empty corpus.
func (c *Client) Search(ctx context.Context, generation string, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collectionName(generation))
	resp, err := c.do(ctx, http.MethodPost, url, reqBody, "search")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []domain.RetrievedChunk{}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError("qdrant", "search", resp)
	}

	var searchResp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Content     string `json:"content"`
				Page        int    `json:"page"`
				ContentType string `json:"content_type"`
				Source      string `json:"source"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				Content:     r.Payload.Content,
				Page:        r.Payload.Page,
				ContentType: domain.ContentType(r.Payload.ContentType),
				Source:      r.Payload.Source,
			},
			MatchType: domain.MatchSemantic,
			Score:     r.Score,
		})
	}
	return out, nil
}

func (c *Client) Drop(ctx context.Context, generation string) error {
	name := c.collectionName(generation)
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, name)
	resp, err := c.do(ctx, http.MethodDelete, url, nil, "drop collection")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.ensureMu.Lock()
	delete(c.ensured, name)
	c.ensureMu.Unlock()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("qdrant", "drop collection", resp)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, name string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[name]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, name)
	resp, err := c.do(ctx, http.MethodPut, url, reqBody, "ensure collection")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 409 when the collection already exists.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return resilience.NewHTTPStatusError("qdrant", "ensure collection", resp)
	}

	c.ensureMu.Lock()
	c.ensured[name] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any, operation string) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	return resp, nil
}
