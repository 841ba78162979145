package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := rt.deps.Chat.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = rt.deps.Chat.Stream(r.Context(), req, stream.Send)
	if err == nil {
		return
	}
	if !stream.Started() {
		writeError(w, r, err)
		return
	}
	// The client already received the degraded answer event.
	slog.Warn("chat_stream_failed",
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
}

// decodeJSON reads a single JSON object. An empty body is accepted when
// allowEmpty is set and leaves dst untouched.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}
