package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func collectEvents(t *testing.T, uc *ChatUseCase, req domain.ChatRequest) ([]domain.StreamEvent, error) {
	t.Helper()
	var events []domain.StreamEvent
	err := uc.Stream(context.Background(), req, func(ev domain.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func statusNodes(events []domain.StreamEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == domain.EventStatus {
			out = append(out, ev.Node)
		}
	}
	return out
}

func TestChatScenarioCatalogQuestionCitesPage(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "search").
		reply("grader", "1, 2").
		on("generator", func(user string) (string, error) {
			if !strings.Contains(user, "[Page 12, Type: table]") {
				return "", errors.New("context missing page header")
			}
			return "We offer Omnifix® syringes in 2 ml and 5 ml (Page 12).", nil
		})
	h.retriever.results = [][]domain.RetrievedChunk{{
		retrieved("Omnifix® syringes overview", 12, domain.ContentText, domain.MatchKeyword),
		retrieved("Product: Omnifix®\n\n| Art.-Nr. | Volume |", 12, domain.ContentTable, domain.MatchSemantic),
	}}
	uc := NewChatUseCase(h.pipeline, h.observer)

	resp, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "What syringes do you have?", ConversationID: "conv-1"})
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "(Page 12)")
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, domain.RouteSearch, resp.Route)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Nil(t, resp.RewrittenQuery)
	assert.Equal(t, domain.MatchKeyword, resp.Sources[0].MatchType)
	assert.Equal(t, domain.MatchSemantic, resp.Sources[1].MatchType)
	assert.Equal(t, domain.ContentTable, resp.Sources[1].ContentType)
	assert.Equal(t, 12, resp.Sources[1].Page)
	assert.Equal(t, []domain.Route{domain.RouteSearch}, h.observer.turns)
}

func TestChatScenarioGreetingSkipsRetrieval(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "chat").
		reply("casual", "Hello! I can help you find products in the catalog.")
	uc := NewChatUseCase(h.pipeline, nil)

	resp, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "Hi"})
	require.NoError(t, err)

	assert.Equal(t, domain.RouteChat, resp.Route)
	assert.Empty(t, resp.Sources)
	assert.NotNil(t, resp.Sources)
	assert.Contains(t, resp.Answer, "catalog")
	assert.Empty(t, h.retriever.calls)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestChatScenarioOffTopicIsDeclined(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "chat").
		reply("casual", "I'm sorry, I can only help with questions about the medical product catalog.")
	uc := NewChatUseCase(h.pipeline, nil)

	resp, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "Who is the president?"})
	require.NoError(t, err)

	assert.Equal(t, domain.RouteChat, resp.Route)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Answer, "only help")
	assert.Empty(t, h.retriever.calls)
	assert.Empty(t, h.model.callsFor("generator"))
}

func TestChatScenarioNoMatchesReturnsFallbackAndRewrittenQuery(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "search").
		reply("grader", "none").
		reply("rewriter", "Kanüle 0,8 mm Sterican")
	h.retriever.results = [][]domain.RetrievedChunk{
		{retrieved("gloves", 40, domain.ContentText, domain.MatchSemantic)},
	}
	uc := NewChatUseCase(h.pipeline, nil)

	resp, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "thin needle?"})
	require.NoError(t, err)

	assert.Equal(t, FallbackAnswer, resp.Answer)
	require.NotNil(t, resp.RewrittenQuery)
	assert.Equal(t, "Kanüle 0,8 mm Sterican", *resp.RewrittenQuery)
	assert.Empty(t, resp.Sources)
	assert.Len(t, h.retriever.calls, 2)
}

func TestChatKeepsEmptyRewrittenQueryInResponse(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "search").
		reply("grader", "none").
		reply("rewriter", "")
	h.retriever.results = [][]domain.RetrievedChunk{
		{retrieved("gloves", 40, domain.ContentText, domain.MatchSemantic)},
	}
	uc := NewChatUseCase(h.pipeline, nil)

	resp, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "thin needle?"})
	require.NoError(t, err)
	require.NotNil(t, resp.RewrittenQuery)
	assert.Empty(t, *resp.RewrittenQuery)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rewritten_query":""`)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	uc := NewChatUseCase(h.pipeline, nil)

	_, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "   "})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	events, err := collectEvents(t, uc, domain.ChatRequest{})
	require.Error(t, err)
	assert.Empty(t, events)
}

func TestStreamEmitsStatusPerNodeThenSingleAnswer(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "search").reply("grader", "1").reply("generator", "answer (Page 2)")
	h.retriever.results = [][]domain.RetrievedChunk{{retrieved("doc", 2, domain.ContentText, domain.MatchKeyword)}}
	uc := NewChatUseCase(h.pipeline, nil)

	events, err := collectEvents(t, uc, domain.ChatRequest{Message: "q", ConversationID: "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"router", "retrieve", "grade_documents", "generate"}, statusNodes(events))
	assert.Equal(t, "Understanding intent...", events[0].Message)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventAnswer, last.Type)
	require.NotNil(t, last.ChatResponse)
	assert.Equal(t, "answer (Page 2)", last.Answer)
	assert.Len(t, last.Sources, 1)
	assert.Equal(t, "c", last.ConversationID)
}

func TestStreamOrderIncludesRewriteCycle(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	grades := 0
	h.model.reply("router", "search").
		reply("rewriter", "better query").
		reply("generator", "found it (Page 5)").
		on("grader", func(string) (string, error) {
			grades++
			if grades == 1 {
				return "none", nil
			}
			return "1", nil
		})
	h.retriever.results = [][]domain.RetrievedChunk{{retrieved("doc", 5, domain.ContentText, domain.MatchSemantic)}}
	uc := NewChatUseCase(h.pipeline, nil)

	events, err := collectEvents(t, uc, domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"router", "retrieve", "grade_documents", "rewrite_query", "retrieve", "grade_documents", "generate",
	}, statusNodes(events))

	answers := 0
	for _, ev := range events {
		if ev.Type == domain.EventAnswer {
			answers++
		}
	}
	assert.Equal(t, 1, answers)
	require.NotNil(t, events[len(events)-1].RewrittenQuery)
	assert.Equal(t, "better query", *events[len(events)-1].RewrittenQuery)
}

func TestStreamFailureEndsWithDegradedAnswer(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.on("router", func(string) (string, error) { return "", errors.New("401 unauthorized") })
	uc := NewChatUseCase(h.pipeline, nil)

	events, err := collectEvents(t, uc, domain.ChatRequest{Message: "q", ConversationID: "c"})
	require.Error(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "router", events[0].Node)

	last := events[1]
	assert.Equal(t, domain.EventAnswer, last.Type)
	assert.Equal(t, DegradedAnswer, last.Answer)
	assert.Empty(t, last.Sources)
	assert.Contains(t, last.Error, "401")
	assert.Equal(t, "c", last.ConversationID)
}

func TestChatPropagatesUpstreamFailure(t *testing.T) {
	h := newPipelineHarness(DefaultPipelineConfig())
	h.model.reply("router", "search")
	h.retriever.err = domain.WrapError(domain.ErrUpstream, "embed", errors.New("502"))
	uc := NewChatUseCase(h.pipeline, nil)

	_, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "q"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrUpstream))
}
