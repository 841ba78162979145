package local

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

const defaultBuffer = 64

// Queue is the in-process stand-in for NATS used when the API indexes
// uploads itself.
type Queue struct {
	reindex chan string

	mu          sync.Mutex
	subscribers map[int]chan string
	nextID      int
}

func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Queue{
		reindex:     make(chan string, buffer),
		subscribers: make(map[int]chan string),
	}
}

func (q *Queue) PublishReindexRequested(ctx context.Context, runID string) error {
	select {
	case q.reindex <- runID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return domain.WrapError(domain.ErrTemporary, "queue reindex", errors.New("reindex queue is full"))
	}
}

func (q *Queue) SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return consume(ctx, q.reindex, "reindex_requested", handler)
}

// PublishIndexReady never blocks: a subscriber that is not keeping up misses
// the notification.
func (q *Queue) PublishIndexReady(_ context.Context, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subscribers {
		select {
		case ch <- runID:
		default:
			slog.Warn("index_ready_dropped", "run_id", runID)
		}
	}
	return nil
}

func (q *Queue) SubscribeIndexReady(ctx context.Context, handler func(context.Context, string) error) error {
	ch := make(chan string, defaultBuffer)
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.subscribers[id] = ch
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
	}()
	return consume(ctx, ch, "index_ready", handler)
}

func consume(ctx context.Context, ch <-chan string, topic string, handler func(context.Context, string) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case runID := <-ch:
			if err := handler(ctx, runID); err != nil {
				slog.Error("queue_handler_failed", "topic", topic, "run_id", runID, "error", err)
			}
		}
	}
}
