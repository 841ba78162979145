package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

// Node is a state of the answer pipeline.
type Node string

const (
	NodeRouter     Node = "router"
	NodeCasualChat Node = "casual_chat"
	NodeRetrieve   Node = "retrieve"
	NodeGrade      Node = "grade_documents"
	NodeRewrite    Node = "rewrite_query"
	NodeGenerate   Node = "generate"

	nodeEnd Node = ""
)

var nodeLabels = map[Node]string{
	NodeRouter:     "Understanding intent...",
	NodeCasualChat: "Thinking...",
	NodeRetrieve:   "Searching documents...",
	NodeGrade:      "Evaluating relevance...",
	NodeRewrite:    "Refining search...",
	NodeGenerate:   "Generating answer...",
}

// Label is the human-readable progress text for the node.
func (n Node) Label() string {
	if label, ok := nodeLabels[n]; ok {
		return label
	}
	return "Working..."
}

type IntentClassifier interface {
	Classify(ctx context.Context, query string) (domain.Route, error)
}

type Responder interface {
	Respond(ctx context.Context, query string) (string, error)
}

type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]domain.RetrievedChunk, error)
}

type Grader interface {
	Grade(ctx context.Context, query string, docs []domain.RetrievedChunk) ([]domain.RetrievedChunk, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, query string, docs []domain.RetrievedChunk) (string, error)
}

// PipelineNodes bundles the collaborators invoked by each node.
type PipelineNodes struct {
	Router    IntentClassifier
	Casual    Responder
	Retriever Retriever
	Grader    Grader
	Rewriter  Rewriter
	Generator Generator
}

type PipelineConfig struct {
	RetrievalK  int
	MaxRewrites int
	Routing     bool
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RetrievalK:  defaultRetrievalK,
		MaxRewrites: 1,
		Routing:     true,
	}
}

// ProgressFunc is called with each node right before it executes.
type ProgressFunc func(node Node) error

// Pipeline drives one turn through the node graph until a terminal node.
type Pipeline struct {
	nodes    PipelineNodes
	cfg      PipelineConfig
	observer ports.PipelineObserver
}

func NewPipeline(nodes PipelineNodes, cfg PipelineConfig, observer ports.PipelineObserver) *Pipeline {
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = defaultRetrievalK
	}
	if cfg.MaxRewrites < 0 {
		cfg.MaxRewrites = 0
	}
	if cfg.Routing && (nodes.Router == nil || nodes.Casual == nil) {
		cfg.Routing = false
	}
	return &Pipeline{nodes: nodes, cfg: cfg, observer: observer}
}

func (p *Pipeline) Run(ctx context.Context, query string, progress ProgressFunc) (*domain.TurnState, error) {
	state := &domain.TurnState{
		OriginalQuery: query,
		Query:         query,
		Route:         domain.RouteSearch,
		Documents:     []domain.RetrievedChunk{},
	}

	node := NodeRetrieve
	if p.cfg.Routing {
		node = NodeRouter
	}

	for node != nodeEnd {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if progress != nil {
			if err := progress(node); err != nil {
				return state, fmt.Errorf("emit progress for %s: %w", node, err)
			}
		}

		started := time.Now()
		err := p.execute(ctx, node, state)
		if p.observer != nil {
			p.observer.ObserveNode(string(node), time.Since(started), err)
		}
		if err != nil {
			return state, fmt.Errorf("%s: %w", node, err)
		}
		node = transition(node, state, p.cfg.MaxRewrites)
	}
	return state, nil
}

// transition is the pipeline's edge table.
func transition(node Node, state *domain.TurnState, maxRewrites int) Node {
	switch node {
	case NodeRouter:
		if state.Route == domain.RouteChat {
			return NodeCasualChat
		}
		return NodeRetrieve
	case NodeRetrieve:
		return NodeGrade
	case NodeGrade:
		if len(state.Documents) > 0 || state.Rewrites >= maxRewrites {
			return NodeGenerate
		}
		return NodeRewrite
	case NodeRewrite:
		return NodeRetrieve
	default:
		return nodeEnd
	}
}

func (p *Pipeline) execute(ctx context.Context, node Node, state *domain.TurnState) error {
	slog.Debug("pipeline_node", "node", node, "query", state.Query)

	switch node {
	case NodeRouter:
		route, err := p.nodes.Router.Classify(ctx, state.Query)
		if err != nil {
			return err
		}
		state.Route = route
	case NodeCasualChat:
		answer, err := p.nodes.Casual.Respond(ctx, state.Query)
		if err != nil {
			return err
		}
		state.Generation = answer
		state.Documents = []domain.RetrievedChunk{}
	case NodeRetrieve:
		docs, err := p.nodes.Retriever.Query(ctx, state.Query, p.cfg.RetrievalK)
		if err != nil {
			return err
		}
		state.Documents = docs
		state.Retrievals++
		slog.Info("retrieved_docs", "count", len(docs), "attempt", state.Retrievals)
	case NodeGrade:
		graded, err := p.nodes.Grader.Grade(ctx, state.Query, state.Documents)
		if err != nil {
			return err
		}
		state.Documents = graded
	case NodeRewrite:
		rewritten, err := p.nodes.Rewriter.Rewrite(ctx, state.Query)
		if err != nil {
			return err
		}
		state.Query = rewritten
		state.Rewrites++
	case NodeGenerate:
		answer, err := p.nodes.Generator.Generate(ctx, state.Query, state.Documents)
		if err != nil {
			return err
		}
		state.Generation = answer
	default:
		return fmt.Errorf("unknown pipeline node %q", node)
	}
	return nil
}
