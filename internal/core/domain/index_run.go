package domain

import "time"

type IndexRunStatus string

const (
	RunQueued     IndexRunStatus = "queued"
	RunProcessing IndexRunStatus = "processing"
	RunReady      IndexRunStatus = "ready"
	RunFailed     IndexRunStatus = "failed"
)

// IndexRun records one full rebuild of the catalog index. Its ID doubles as
// the indexing generation the vector store partitions on.
type IndexRun struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	StorageKey string         `json:"storage_key,omitempty"`
	Status     IndexRunStatus `json:"status"`
	ChunkCount int            `json:"chunk_count"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type IndexResult struct {
	Status    string `json:"status"`
	NumChunks int    `json:"num_chunks"`
	RunID     string `json:"run_id,omitempty"`
}
