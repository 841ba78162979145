package domain

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
)

// Chunk is a retrievable unit of catalog content with page provenance.
// Chunks are immutable once extracted.
type Chunk struct {
	Content     string      `json:"content"`
	Page        int         `json:"page"`
	ContentType ContentType `json:"content_type"`
	Source      string      `json:"source"`
}

type MatchType string

const (
	MatchKeyword  MatchType = "keyword"
	MatchSemantic MatchType = "semantic"
	MatchUnknown  MatchType = "unknown"
)

// RetrievedChunk is a chunk tagged with the sub-index that surfaced it.
type RetrievedChunk struct {
	Chunk
	MatchType MatchType `json:"match_type"`
	Score     float64   `json:"score,omitempty"`
}

// Table is a rectangular-ish grid of raw cell strings as read from a page.
type Table [][]string

// Page is one page of a parsed catalog document.
type Page struct {
	Number int
	Text   string
	Tables []Table
}

// Document is the parsed form of a catalog file.
type Document struct {
	Name  string
	Pages []Page
}
