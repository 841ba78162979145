package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

type fakeChat struct {
	got  domain.ChatRequest
	resp *domain.ChatResponse
}

func (f *fakeChat) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.got = req
	return f.resp, nil
}

func (f *fakeChat) Stream(_ context.Context, req domain.ChatRequest, sink ports.EventSink) error {
	f.got = req
	if err := sink(domain.StreamEvent{Type: domain.EventStatus, Node: "retrieve", Message: "Searching documents..."}); err != nil {
		return err
	}
	return sink(domain.StreamEvent{Type: domain.EventAnswer, ChatResponse: f.resp})
}

type fakeIndexer struct {
	source string
	err    error
}

func (f *fakeIndexer) Reindex(_ context.Context, source string) (*domain.IndexResult, error) {
	f.source = source
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IndexResult{Status: "ok", NumChunks: 17, RunID: "run-7"}, nil
}

func (f *fakeIndexer) ProcessRun(context.Context, string) error { return nil }

func run(t *testing.T, services *Services, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	closed := false
	services.Close = func() { closed = true }
	root := NewRootCmd(func(context.Context, bool) (*Services, error) { return services, nil })

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	assert.True(t, closed, "services must be closed")
	return out.String(), err
}

func sampleResponse() *domain.ChatResponse {
	return &domain.ChatResponse{
		Answer: "Omnifix 4606051V is a 2 ml syringe (Page 12).",
		Sources: []domain.Source{{
			Page:           12,
			ContentPreview: "Product: Omnifix®\n\n| Art.-Nr. |",
			ContentType:    domain.ContentTable,
			MatchType:      domain.MatchKeyword,
		}},
		ConversationID: "conv-1",
		Route:          domain.RouteSearch,
	}
}

func TestIndexCommandPrintsResult(t *testing.T) {
	indexer := &fakeIndexer{}
	out, err := run(t, &Services{Indexer: indexer}, "index", "--source", "data/catalog.pdf")

	require.NoError(t, err)
	assert.Equal(t, "data/catalog.pdf", indexer.source)
	assert.Contains(t, out, "indexed 17 chunks")
	assert.Contains(t, out, "run: run-7")
}

func TestIndexCommandReturnsError(t *testing.T) {
	indexer := &fakeIndexer{err: domain.WrapError(domain.ErrNotFound, "open catalog", errors.New("missing.pdf"))}
	_, err := run(t, &Services{Indexer: indexer}, "index")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
}

func TestAskJoinsArgsAndPrintsSources(t *testing.T) {
	chat := &fakeChat{resp: sampleResponse()}
	out, err := run(t, &Services{Chat: chat}, "ask", "2", "ml", "syringe?")

	require.NoError(t, err)
	assert.Equal(t, "2 ml syringe?", chat.got.Message)
	assert.Contains(t, out, "(Page 12)")
	assert.Contains(t, out, "Page 12 [table, keyword] Product: Omnifix® | Art.-Nr. |")
	assert.Contains(t, out, "conversation: conv-1")
}

func TestAskStreamPrintsProgressThenAnswer(t *testing.T) {
	chat := &fakeChat{resp: sampleResponse()}
	out, err := run(t, &Services{Chat: chat}, "ask", "--stream", "--conversation", "conv-1", "syringes")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", chat.got.ConversationID)
	progress := bytes.Index([]byte(out), []byte("Searching documents..."))
	answer := bytes.Index([]byte(out), []byte("Omnifix 4606051V"))
	require.GreaterOrEqual(t, progress, 0)
	assert.Greater(t, answer, progress)
}

func TestAskJSONOutput(t *testing.T) {
	chat := &fakeChat{resp: sampleResponse()}
	out, err := run(t, &Services{Chat: chat}, "ask", "--json", "syringes")

	require.NoError(t, err)
	var decoded domain.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "conv-1", decoded.ConversationID)
	require.Len(t, decoded.Sources, 1)
}

func TestAskRequiresQuestion(t *testing.T) {
	root := NewRootCmd(func(context.Context, bool) (*Services, error) {
		t.Fatal("services must not load without a question")
		return nil, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"ask"})

	assert.Error(t, root.Execute())
}
