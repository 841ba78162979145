package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

const contextDelimiter = "\n\n---\n\n"

// AnswerGenerator produces the grounded, page-cited answer.
type AnswerGenerator struct {
	model  ports.ChatModel
	prompt string
}

func NewAnswerGenerator(model ports.ChatModel, prompt string) *AnswerGenerator {
	return &AnswerGenerator{model: model, prompt: prompt}
}

// Generate returns FallbackAnswer without a model call when docs is empty.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, docs []domain.RetrievedChunk) (string, error) {
	if len(docs) == 0 {
		return FallbackAnswer, nil
	}

	user := "Context:\n" + BuildContext(docs) + "\n\nQuestion: " + query
	answer, err := g.model.Complete(ctx, g.prompt, user)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	slog.Info("generation_complete", "answer_length", len(answer), "context_docs", len(docs))
	return answer, nil
}

// BuildContext joins chunks in order, each headed by its page and type.
func BuildContext(docs []domain.RetrievedChunk) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		contentType := doc.ContentType
		if contentType == "" {
			contentType = domain.ContentText
		}
		parts[i] = fmt.Sprintf("[Page %d, Type: %s]\n%s", doc.Page, contentType, doc.Content)
	}
	return strings.Join(parts, contextDelimiter)
}
