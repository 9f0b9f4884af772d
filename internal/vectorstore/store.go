// Package vectorstore persists version embeddings in pgvector and
// serves nearest-neighbor queries over them.
package vectorstore

import "github.com/google/uuid"

// Entry is one version's embedding row.
type Entry struct {
	VersionID uuid.UUID
	PromptID  uuid.UUID
	Embedding []float32
}

type SearchOptions struct {
	// PromptID restricts the search to one prompt's history when set.
	PromptID uuid.UUID
	TopK     int
	MinScore float64
}

// SearchResult carries the matched version plus enough context to
// render a hit without a second query.
type SearchResult struct {
	VersionID uuid.UUID `json:"version_id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Version   int       `json:"version"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
}
