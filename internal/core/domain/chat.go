package domain

import "unicode/utf8"

type Route string

const (
	RouteSearch Route = "search"
	RouteChat   Route = "chat"
)

const SourcePreviewRunes = 150

// TurnState is the per-request state owned by the pipeline for one run.
type TurnState struct {
	OriginalQuery string
	Query         string
	Documents     []RetrievedChunk
	Generation    string
	Route         Route
	Rewrites      int
	Retrievals    int
}

// QueryRewritten reports whether the query was reformulated during the turn.
func (s *TurnState) QueryRewritten() bool {
	return s.Rewrites > 0
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Source is the response-facing view of a graded chunk.
type Source struct {
	Page           int         `json:"page"`
	ContentPreview string      `json:"content_preview"`
	SourceText     string      `json:"source_text"`
	ContentType    ContentType `json:"content_type"`
	MatchType      MatchType   `json:"match_type"`
}

func NewSource(chunk RetrievedChunk) Source {
	matchType := chunk.MatchType
	if matchType == "" {
		matchType = MatchUnknown
	}
	return Source{
		Page:           chunk.Page,
		ContentPreview: previewRunes(chunk.Content, SourcePreviewRunes),
		SourceText:     chunk.Content,
		ContentType:    chunk.ContentType,
		MatchType:      matchType,
	}
}

func previewRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

type ChatResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id"`
	Route          Route    `json:"route,omitempty"`
	RewrittenQuery *string  `json:"rewritten_query,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type EventType string

const (
	EventStatus EventType = "status"
	EventAnswer EventType = "answer"
)

// StreamEvent is one server-sent event of a streamed chat turn. Status events
// carry the node and its label; the single answer event embeds the response.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Node    string    `json:"node,omitempty"`
	Message string    `json:"message,omitempty"`
	*ChatResponse
}
