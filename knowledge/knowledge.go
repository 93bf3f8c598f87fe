// Package knowledge provides the document knowledge base backing retrieval.
package knowledge

import "context"

// Document represents an indexed or retrieved knowledge document.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// Knowledge is the interface for pluggable knowledge sources.
// Implementations index documents and serve relevance searches.
type Knowledge interface {
	// Load indexes all pending documents into the underlying store. Idempotent.
	Load(ctx context.Context) error

	// Search returns the top-k most relevant documents for the query.
	Search(ctx context.Context, query string, topK int) ([]Document, error)

	// Close releases resources.
	Close() error
}
