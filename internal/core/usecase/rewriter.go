package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

// QueryRewriter reformulates a query into catalog search terms. The model
// output is used as-is.
type QueryRewriter struct {
	model  ports.ChatModel
	prompt string
}

func NewQueryRewriter(model ports.ChatModel, prompt string) *QueryRewriter {
	return &QueryRewriter{model: model, prompt: prompt}
}

func (r *QueryRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	rewritten, err := r.model.Complete(ctx, r.prompt, query)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	slog.Info("query_rewritten", "original_query", query, "new_query", rewritten)
	return rewritten, nil
}
