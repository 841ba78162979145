package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
		record    bool
	}{
		{context.Canceled, false, false},
		{fmt.Errorf("publish: %w", nats.ErrConnectionClosed), true, true},
		{nats.ErrNoServers, true, true},
		{errors.New("bad subject"), false, true},
	}
	for _, tc := range cases {
		got := classifyNATSError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("classifyNATSError(%v) = %+v", tc.err, got)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrDisconnected); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	plain := errors.New("bad subject")
	if err := wrapTemporaryIfNeeded(plain); err != plain {
		t.Fatalf("expected permanent error unchanged, got %v", err)
	}
}

func TestNewWithOptionsRequiresSubjects(t *testing.T) {
	if _, err := NewWithOptions("nats://127.0.0.1:1", Subjects{}, Options{}); err == nil {
		t.Fatalf("expected error for missing subjects")
	}
}
