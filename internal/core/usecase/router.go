package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

// IntentRouter separates catalog questions from general conversation.
type IntentRouter struct {
	model  ports.ChatModel
	prompt string
}

func NewIntentRouter(model ports.ChatModel, prompt string) *IntentRouter {
	return &IntentRouter{model: model, prompt: prompt}
}

func (r *IntentRouter) Classify(ctx context.Context, query string) (domain.Route, error) {
	raw, err := r.model.Complete(ctx, r.prompt, query)
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}
	route := parseRoute(raw)
	slog.Info("router_decision", "decision", route, "raw", raw)
	return route, nil
}

// parseRoute fails open: anything but an exact "chat" label is a search.
func parseRoute(raw string) domain.Route {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.RouteChat):
		return domain.RouteChat
	default:
		return domain.RouteSearch
	}
}

// CasualResponder answers greetings and declines off-topic requests.
type CasualResponder struct {
	model  ports.ChatModel
	prompt string
}

func NewCasualResponder(model ports.ChatModel, prompt string) *CasualResponder {
	return &CasualResponder{model: model, prompt: prompt}
}

func (c *CasualResponder) Respond(ctx context.Context, query string) (string, error) {
	answer, err := c.model.Complete(ctx, c.prompt, query)
	if err != nil {
		return "", fmt.Errorf("casual chat: %w", err)
	}
	return answer, nil
}
