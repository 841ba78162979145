package ports

import (
	"context"
	"io"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// EventSink receives stream events in emission order.
type EventSink func(domain.StreamEvent) error

// ChatService is the inbound contract for answering catalog questions.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	Stream(ctx context.Context, req domain.ChatRequest, sink EventSink) error
}

// CatalogIndexer is the inbound contract for full catalog rebuilds.
type CatalogIndexer interface {
	Reindex(ctx context.Context, source string) (*domain.IndexResult, error)
	ProcessRun(ctx context.Context, runID string) error
}

// CatalogUploader is the inbound contract for uploading a new catalog file.
type CatalogUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.IndexRun, error)
}

// IndexRunReader is the inbound read model for index run state.
type IndexRunReader interface {
	GetRun(ctx context.Context, id string) (*domain.IndexRun, error)
}
