package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Operation names an upstream call. Each operation gets its own breaker.
type Operation string

const (
	OpChat    Operation = "llm.chat"
	OpEmbed   Operation = "llm.embed"
	OpPublish Operation = "queue.publish"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor wraps model and queue calls with retry and circuit breaking.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[Operation]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[Operation]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Execute runs fn under op's policy. A nil classify means
// ClassifyUpstreamError.
func (e *Executor) Execute(ctx context.Context, op Operation, fn func(context.Context) error, classify ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: nil call for " + string(op))
	}
	if classify == nil {
		classify = ClassifyUpstreamError
	}

	if !e.policy.Breaker.Enabled {
		return e.withRetry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.withRetry(ctx, op, fn, classify)
	})
	return err
}

// Call is Execute for calls that return a value.
func Call[T any](ctx context.Context, e *Executor, op Operation, fn func(context.Context) (T, error), classify ErrorClassifier) (T, error) {
	var out T
	err := e.Execute(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	}, classify)
	return out, err
}

func (e *Executor) withRetry(ctx context.Context, op Operation, fn func(context.Context) error, classify ErrorClassifier) error {
	retry := e.policy.Retry
	if err := ctx.Err(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= retry.Attempts || !classify(err).Retryable {
			return err
		}

		wait := retry.delay(attempt)
		slog.Warn("upstream_retry",
			"operation", string(op),
			"attempt", attempt,
			"max_attempts", retry.Attempts,
			"delay_ms", wait.Milliseconds(),
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
	}
}

func (e *Executor) breaker(op Operation, classify ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	policy := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        string(op),
		MaxRequests: policy.HalfOpenCalls,
		Timeout:     policy.OpenFor,
		ReadyToTrip: policy.trips,
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("upstream_breaker_state", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
