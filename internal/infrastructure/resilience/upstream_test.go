package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestWrapUpstreamErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"throttled", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, domain.ErrTemporary},
		{"bad gateway", &HTTPStatusError{StatusCode: http.StatusBadGateway}, domain.ErrTemporary},
		{"unauthorized", &HTTPStatusError{StatusCode: http.StatusUnauthorized}, domain.ErrUnauthorized},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest}, domain.ErrUpstream},
		{"opaque", errors.New("decode failed"), domain.ErrUpstream},
		{"wrapped status", fmt.Errorf("chat: %w", &HTTPStatusError{StatusCode: 504}), domain.ErrTemporary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapUpstreamError("llm complete", tc.err)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected kind %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestWrapUpstreamErrorKeepsExistingKindAndCancellation(t *testing.T) {
	tagged := domain.WrapError(domain.ErrUnauthorized, "embed", errors.New("bad key"))
	if got := WrapUpstreamError("embed", tagged); got != tagged {
		t.Fatalf("expected error to pass through unchanged, got %v", got)
	}
	if got := WrapUpstreamError("embed", context.Canceled); !errors.Is(got, context.Canceled) || errors.Is(got, domain.ErrUpstream) {
		t.Fatalf("cancellation must not be tagged, got %v", got)
	}
	if WrapUpstreamError("embed", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestNewHTTPStatusErrorIncludesBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Status:     "502 Bad Gateway",
		Body:       io.NopCloser(strings.NewReader(" model unavailable \n")),
	}
	err := NewHTTPStatusError("ollama", "embed", resp)
	if got := err.Error(); got != "ollama embed status: 502 Bad Gateway: model unavailable" {
		t.Fatalf("unexpected error text %q", got)
	}
	if !ClassifyUpstreamError(err).Retryable {
		t.Fatalf("expected 502 to be retryable")
	}
}
