package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

type ChatUseCase struct {
	pipeline *Pipeline
	observer ports.PipelineObserver
}

func NewChatUseCase(pipeline *Pipeline, observer ports.PipelineObserver) *ChatUseCase {
	return &ChatUseCase{pipeline: pipeline, observer: observer}
}

func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	message, conversationID, err := normalizeChatRequest(req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	state, err := uc.pipeline.Run(ctx, message, nil)
	if err != nil {
		return nil, err
	}
	resp := buildChatResponse(state, conversationID)
	uc.observeTurn(state, resp, time.Since(started))
	return resp, nil
}

// Stream emits a status event per executed node followed by exactly one
// answer event. A failed turn still ends with an answer event carrying the
// degraded answer and the error text.
func (uc *ChatUseCase) Stream(ctx context.Context, req domain.ChatRequest, sink ports.EventSink) error {
	message, conversationID, err := normalizeChatRequest(req)
	if err != nil {
		return err
	}

	started := time.Now()
	state, runErr := uc.pipeline.Run(ctx, message, func(node Node) error {
		return sink(domain.StreamEvent{
			Type:    domain.EventStatus,
			Node:    string(node),
			Message: node.Label(),
		})
	})
	if runErr != nil {
		slog.Error("chat_turn_failed", "conversation_id", conversationID, "error", runErr)
		degraded := &domain.ChatResponse{
			Answer:         DegradedAnswer,
			Sources:        []domain.Source{},
			ConversationID: conversationID,
			Error:          runErr.Error(),
		}
		if sinkErr := sink(domain.StreamEvent{Type: domain.EventAnswer, ChatResponse: degraded}); sinkErr != nil {
			return errors.Join(runErr, sinkErr)
		}
		return runErr
	}

	resp := buildChatResponse(state, conversationID)
	uc.observeTurn(state, resp, time.Since(started))
	return sink(domain.StreamEvent{Type: domain.EventAnswer, ChatResponse: resp})
}

func (uc *ChatUseCase) observeTurn(state *domain.TurnState, resp *domain.ChatResponse, duration time.Duration) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveTurn(state.Route, len(resp.Sources), state.QueryRewritten(), duration)
}

func normalizeChatRequest(req domain.ChatRequest) (string, string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return message, conversationID, nil
}

func buildChatResponse(state *domain.TurnState, conversationID string) *domain.ChatResponse {
	sources := make([]domain.Source, 0, len(state.Documents))
	for _, doc := range state.Documents {
		sources = append(sources, domain.NewSource(doc))
	}

	resp := &domain.ChatResponse{
		Answer:         state.Generation,
		Sources:        sources,
		ConversationID: conversationID,
		Route:          state.Route,
	}
	if state.QueryRewritten() {
		query := state.Query
		resp.RewrittenQuery = &query
	}
	return resp
}
