package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

var (
	gradeIndexPattern = regexp.MustCompile(`\d+`)
	gradeNonePattern  = regexp.MustCompile(`(?i)\bnone\b`)
)

// RelevanceGrader filters retrieved chunks with one batched model call.
type RelevanceGrader struct {
	model  ports.ChatModel
	prompt string
}

func NewRelevanceGrader(model ports.ChatModel, prompt string) *RelevanceGrader {
	return &RelevanceGrader{model: model, prompt: prompt}
}

// Grade keeps the chunks the model marks relevant, in their original order.
func (g *RelevanceGrader) Grade(ctx context.Context, query string, docs []domain.RetrievedChunk) ([]domain.RetrievedChunk, error) {
	if len(docs) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	raw, err := g.model.Complete(ctx, g.prompt, formatGraderInput(query, docs))
	if err != nil {
		return nil, fmt.Errorf("grade documents: %w", err)
	}

	relevant := parseRelevantIndices(raw, len(docs))
	out := make([]domain.RetrievedChunk, 0, len(relevant))
	for i, doc := range docs {
		if _, ok := relevant[i+1]; ok {
			out = append(out, doc)
		}
	}
	slog.Info("grading_complete", "relevant", len(out), "total", len(docs))
	return out, nil
}

func formatGraderInput(query string, docs []domain.RetrievedChunk) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("Document %d:\n%s", i+1, doc.Content)
	}
	return "Question: " + query + "\n\nDocuments:\n" + strings.Join(parts, "\n\n")
}

// parseRelevantIndices extracts 1-based indices within [1, n]. A "none"
// token anywhere in the response empties the result.
func parseRelevantIndices(raw string, n int) map[int]struct{} {
	out := make(map[int]struct{})
	if gradeNonePattern.MatchString(raw) {
		return out
	}
	for _, match := range gradeIndexPattern.FindAllString(raw, -1) {
		idx, err := strconv.Atoi(match)
		if err != nil || idx < 1 || idx > n {
			continue
		}
		out[idx] = struct{}{}
	}
	return out
}
